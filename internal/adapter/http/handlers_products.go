package adapthttp

import (
	"errors"
	"fmt"
	"net/http"

	"mfgrecords/internal/app"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/sanitize"
)

type productInput struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
}

func (in productInput) product(id int64) domain.Product {
	return domain.Product{
		ID:          id,
		SKU:         sanitize.Input(in.SKU, sanitize.Text),
		Name:        sanitize.Input(in.Name, sanitize.Text),
		Description: sanitize.Input(in.Description, sanitize.Text),
		UnitPrice:   in.UnitPrice,
	}
}

type materialInput struct {
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	UnitCost float64 `json:"unit_cost"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := parseJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.products.Create(r.Context(), in.product(0))
	if err != nil {
		s.failMutation(w, r, err, "Product could not be created")
		return
	}
	s.succeed(r, "Product "+p.SKU+" created.")
	s.logActivity(r, "product_create", fmt.Sprintf("product %d (%s)", p.ID, p.SKU))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in productInput
	if err := parseJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.products.Update(r.Context(), in.product(id))
	if err != nil {
		s.failMutation(w, r, err, "Product could not be updated")
		return
	}
	s.succeed(r, "Product "+p.SKU+" updated.")
	s.logActivity(r, "product_update", fmt.Sprintf("product %d (%s)", p.ID, p.SKU))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.products.Delete(r.Context(), id); err != nil {
		s.failMutation(w, r, err, "Product could not be deleted")
		return
	}
	s.succeed(r, "Product deleted.")
	s.logActivity(r, "product_delete", fmt.Sprintf("product %d", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProductCost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cost, err := s.products.ProductionCost(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "production_cost": cost})
}

func (s *Server) handleGetBillOfMaterials(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	lines, err := s.products.BillOfMaterials(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleSetBillOfMaterials(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req struct {
		Lines []struct {
			MaterialID int64   `json:"material_id"`
			Quantity   float64 `json:"quantity"`
		} `json:"lines"`
	}
	if err := parseJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	lines := make([]domain.BOMLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.BOMLine{MaterialID: l.MaterialID, Quantity: l.Quantity})
	}
	if err := s.products.SetBillOfMaterials(r.Context(), id, lines); err != nil {
		s.failMutation(w, r, err, "Bill of materials could not be saved")
		return
	}
	s.succeed(r, "Bill of materials saved.")
	s.logActivity(r, "bom_update", fmt.Sprintf("product %d, %d lines", id, len(lines)))

	saved, err := s.products.BillOfMaterials(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := s.products.Materials(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var in materialInput
	if err := parseJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	m, err := s.products.CreateMaterial(r.Context(), domain.Material{
		Name:     sanitize.Input(in.Name, sanitize.Text),
		Unit:     sanitize.Input(in.Unit, sanitize.Text),
		UnitCost: in.UnitCost,
	})
	if err != nil {
		s.failMutation(w, r, err, "Material could not be created")
		return
	}
	s.succeed(r, "Material "+m.Name+" created.")
	s.logActivity(r, "material_create", fmt.Sprintf("material %d (%s)", m.ID, m.Name))
	writeJSON(w, http.StatusCreated, m)
}

// failMutation reports a failed write to the user as a danger flash and
// answers with the mapped status.
func (s *Server) failMutation(w http.ResponseWriter, r *http.Request, err error, prefix string) {
	text := prefix + "."
	switch {
	case errors.Is(err, app.ErrDuplicate):
		text = prefix + ": a record with the same key already exists."
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrNotFound):
		text = prefix + ": " + err.Error() + "."
	}
	_ = s.flash.Set(r.Context(), sessionFrom(r.Context()), domain.FlashDanger, text)
	s.writeServiceError(w, r, err)
}

func (s *Server) succeed(r *http.Request, text string) {
	if err := s.flash.Set(r.Context(), sessionFrom(r.Context()), domain.FlashSuccess, text); err != nil {
		s.log.Warn(r.Context(), "failed to set flash", "err", err)
	}
}

// logActivity audits the current user's action. Failures never affect the
// response.
func (s *Server) logActivity(r *http.Request, action, details string) {
	user := userFrom(r.Context())
	if user == nil {
		return
	}
	client := clientInfo(r)
	_ = s.activity.Log(r.Context(), domain.ActivityRecord{
		UserID:    user.ID,
		Action:    action,
		Details:   details,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})
}
