package adapthttp

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"mfgrecords/internal/app"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
	"mfgrecords/internal/metrics"
)

// OIDCConfig holds the single sign-on provider. SSO routes answer 404 unless Enabled.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Auth     *app.AuthService
	Sessions *app.SessionService
	Flash    *app.FlashService
	Activity *app.ActivityLogger
	Products *app.ProductService

	Logger  logging.Logger
	Metrics *metrics.Metrics
	OIDC    OIDCConfig

	// Health reports backend reachability for /api/health. Optional.
	Health func(ctx context.Context) error

	WebDir       string
	SecureCookie bool
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth     *app.AuthService
	sessions *app.SessionService
	flash    *app.FlashService
	activity *app.ActivityLogger
	products *app.ProductService

	log          logging.Logger
	metrics      *metrics.Metrics
	oidcConfig   OIDCConfig
	health       func(ctx context.Context) error
	webDir       string
	secureCookie bool
}

// New creates a Server wired to the given application services.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		auth:         d.Auth,
		sessions:     d.Sessions,
		flash:        d.Flash,
		activity:     d.Activity,
		products:     d.Products,
		log:          log.With("component", "http"),
		metrics:      d.Metrics,
		oidcConfig:   d.OIDC,
		health:       d.Health,
		webDir:       d.WebDir,
		secureCookie: d.SecureCookie,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /csrf", s.handleCSRF)
	api.HandleFunc("POST /login", s.handleLogin)
	api.HandleFunc("POST /logout", s.handleLogout)
	api.HandleFunc("GET /setup", s.handleSetupStatus)
	api.HandleFunc("POST /setup", s.handleSetupUser)
	api.HandleFunc("GET /flash", s.handleFlash)
	api.Handle("GET /me", s.requireAuth(http.HandlerFunc(s.handleMe)))

	editors := []domain.Role{domain.RoleAdmin, domain.RoleManager}
	readers := []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleOperator, domain.RoleViewer}

	api.Handle("GET /products", s.requireRole(readers, s.handleListProducts))
	api.Handle("POST /products", s.requireRole(editors, s.handleCreateProduct))
	api.Handle("GET /products/{id}", s.requireRole(readers, s.handleGetProduct))
	api.Handle("PUT /products/{id}", s.requireRole(editors, s.handleUpdateProduct))
	api.Handle("DELETE /products/{id}", s.requireRole([]domain.Role{domain.RoleAdmin}, s.handleDeleteProduct))
	api.Handle("GET /products/{id}/cost", s.requireRole(readers, s.handleProductCost))
	api.Handle("GET /products/{id}/materials", s.requireRole(readers, s.handleGetBillOfMaterials))
	api.Handle("PUT /products/{id}/materials", s.requireRole(editors, s.handleSetBillOfMaterials))
	api.Handle("GET /materials", s.requireRole(readers, s.handleListMaterials))
	api.Handle("POST /materials", s.requireRole(editors, s.handleCreateMaterial))
	api.Handle("GET /activity", s.requireRole(editors, s.handleActivity))

	sso := http.NewServeMux()
	sso.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	sso.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	root := http.NewServeMux()
	// Sessionless endpoints.
	root.HandleFunc("GET /api/health", s.handleHealth)
	root.HandleFunc("GET /api/config", s.handleConfig)
	root.Handle("/api/", http.StripPrefix("/api", s.sessionMiddleware(s.csrfMiddleware(api))))
	root.Handle("/auth/", s.sessionMiddleware(sso))
	if s.metrics != nil {
		root.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.webDir != "" {
		root.Handle("/", spaFromDisk(s.webDir))
	}

	return s.loggingMiddleware(withNoCache(root))
}
