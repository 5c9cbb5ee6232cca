package adapthttp

import "net/http"

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	records, err := s.activity.Recent(r.Context(), intQuery(r, "limit", 100))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
