package adapthttp

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mfgrecords/internal/app"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
	expiredContextKey contextKey = "session_expired"
)

const (
	sessionCookie = "session"
	csrfHeader    = "X-CSRF-Token"
	csrfFormField = "csrf_token"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware tags the request with an id, logs it once served and
// records request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := logging.WithRequestData(r.Context(), &logging.RequestData{
			RequestID:  reqID,
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
		})
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		d := time.Since(start)
		s.metrics.ObserveHTTP(r.Method, rec.status, d)
		s.log.Info(ctx, "request", "status", rec.status, "duration_ms", d.Milliseconds())
	})
}

// sessionMiddleware loads the visitor's session, enforces the idle timeout
// and starts an anonymous session when there is none.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *domain.Session
		if c, err := r.Cookie(sessionCookie); err == nil {
			loaded, err := s.sessions.Load(ctx, c.Value)
			if err != nil {
				s.log.Error(ctx, "failed to load session", "err", err)
				writeError(w, http.StatusInternalServerError, errInternal)
				return
			}
			sess = loaded
		}

		// Only a signed-in visitor is told that their session expired.
		expired := false
		if sess != nil {
			wasAuthenticated := sess.Authenticated()
			if !s.sessions.CheckTimeout(ctx, sess) {
				expired = wasAuthenticated
				sess = nil
			}
		}

		if sess == nil {
			started, err := s.sessions.Start(ctx)
			if err != nil {
				s.log.Error(ctx, "failed to start session", "err", err)
				writeError(w, http.StatusInternalServerError, errInternal)
				return
			}
			sess = started
			s.setSessionCookie(w, sess.ID)
			if expired {
				_ = s.flash.Set(ctx, sess, domain.FlashWarning, "Your session expired. Please sign in again.")
			}
		}

		ctx = context.WithValue(ctx, sessionContextKey, sess)
		ctx = context.WithValue(ctx, expiredContextKey, expired)
		if sess.Authenticated() {
			ctx = logging.WithUserID(ctx, sess.UserID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// csrfMiddleware rejects state-changing requests whose token does not match
// the session's.
func (s *Server) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get(csrfHeader)
		if token == "" {
			token = r.FormValue(csrfFormField)
		}
		if !s.sessions.ValidateCSRFToken(sessionFrom(r.Context()), token) {
			s.log.Warn(r.Context(), "csrf token rejected")
			writeError(w, http.StatusForbidden, app.ErrCSRF)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the session's user or answers 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := sessionFrom(ctx)
		if !sess.Authenticated() {
			if expired, _ := ctx.Value(expiredContextKey).(bool); expired {
				writeError(w, http.StatusUnauthorized, app.ErrSessionExpired)
				return
			}
			writeError(w, http.StatusUnauthorized, app.ErrUnauthorized)
			return
		}
		user, err := s.auth.CurrentUser(ctx, sess)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userContextKey, user)))
	})
}

// requireRole wraps h with requireAuth and answers 403 unless the user holds
// one of roles.
func (s *Server) requireRole(roles []domain.Role, h http.HandlerFunc) http.Handler {
	return s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r.Context()).HasRole(roles...) {
			writeError(w, http.StatusForbidden, app.ErrForbidden)
			return
		}
		h(w, r)
	}))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func sessionFrom(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionContextKey).(*domain.Session)
	return sess
}

func userFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userContextKey).(*domain.User)
	return u
}
