package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"

	adapthttp "mfgrecords/internal/adapter/http"
	"mfgrecords/internal/adapter/memory"
	"mfgrecords/internal/adapter/sqlstore"
	"mfgrecords/internal/app"
	"mfgrecords/internal/cache"
	"mfgrecords/internal/config"
	"mfgrecords/internal/db"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
	"mfgrecords/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	log.Info(ctx, "starting", "config", cfg.String())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("mfg", reg)

	exec, err := db.Open(ctx, db.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          log,
		Observer:        m,
	})
	if err != nil {
		return err
	}
	defer func() { _ = exec.Close() }()

	if cfg.Database.Migrate {
		if err := exec.Migrate(ctx); err != nil {
			return err
		}
	}

	store, err := cache.New(cache.Config{Enabled: cfg.Cache.Enabled, Dir: cfg.Cache.Dir}, log, cache.WithObserver(m))
	if err != nil {
		log.Warn(ctx, "cache unavailable, continuing without it", "dir", cfg.Cache.Dir, "err", err)
		store = cache.Nop{}
	}

	repo := sqlstore.New(exec)
	var sessionStore domain.SessionStore = sqlstore.NewSessionStore(repo)
	if cfg.Session.Store == "memory" {
		sessionStore = memory.NewSessionStore(memory.New())
	}

	sessions := app.NewSessionService(sessionStore, cfg.Session.Timeout, log)
	activity := app.NewActivityLogger(sqlstore.NewActivityRepo(repo), log)
	flash := app.NewFlashService(sessionStore, log)
	auth := app.NewAuthService(repo, sessions, app.NewPasswordHasher(cfg.Session.BcryptCost), store, activity, log)
	products := app.NewProductService(sqlstore.NewProductRepo(repo), sqlstore.NewMaterialRepo(repo), store)

	if err := auth.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdmin && !cfg.IsProduction(), cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	oidcCfg, err := setupOIDC(ctx, cfg.OIDC)
	if err != nil {
		return err
	}

	srv := adapthttp.New(adapthttp.Deps{
		Auth:         auth,
		Sessions:     sessions,
		Flash:        flash,
		Activity:     activity,
		Products:     products,
		Logger:       log,
		Metrics:      m,
		OIDC:         oidcCfg,
		Health:       exec.Ping,
		WebDir:       cfg.WebDir,
		SecureCookie: cfg.Session.SecureCookie,
	})

	go sweepSessions(ctx, sessions, cfg.Session.SweepEvery, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func setupOIDC(ctx context.Context, c config.OIDC) (adapthttp.OIDCConfig, error) {
	if !c.Enabled() {
		return adapthttp.OIDCConfig{}, nil
	}
	provider, err := oidc.NewProvider(ctx, c.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc provider: %w", err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// sweepSessions deletes idle sessions until ctx is done.
func sweepSessions(ctx context.Context, sessions *app.SessionService, every time.Duration, log logging.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sessions.SweepIdle(ctx)
			if err != nil {
				log.Warn(ctx, "session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info(ctx, "idle sessions removed", "count", n)
			}
		}
	}
}
