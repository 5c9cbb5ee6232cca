// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"mfgrecords/internal/app"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/sanitize"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn(r.Context(), "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidcConfig.Enabled,
	})
}

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := s.sessions.GenerateCSRFToken(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	var req credentials
	if err := parseJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	next, err := s.auth.Login(ctx, sess, sanitize.Input(req.Username, sanitize.String), req.Password, clientInfo(r))
	if errors.Is(err, app.ErrInvalidCredentials) {
		_ = s.flash.Set(ctx, sess, domain.FlashDanger, "Invalid username or password.")
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setSessionCookie(w, next.ID)
	token, err := s.sessions.GenerateCSRFToken(ctx, next)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = s.flash.Set(ctx, next, domain.FlashSuccess, "Welcome back, "+next.Username+".")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"username":   next.Username,
		"role":       next.Role,
		"csrf_token": token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), sessionFrom(r.Context()), clientInfo(r)); err != nil {
		s.log.Error(r.Context(), "logout failed", "err", err)
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	needed, err := s.auth.NeedsSetup(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"needs_setup": needed})
}

func (s *Server) handleSetupUser(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.auth.CreateInitialUser(r.Context(), sanitize.Input(req.Username, sanitize.String), req.Password); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = s.flash.Set(r.Context(), sessionFrom(r.Context()), domain.FlashSuccess, "Administrator account created. Please sign in.")
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleFlash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"flash": s.flash.Get(r.Context(), sessionFrom(r.Context())),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	ctx := r.Context()

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		s.log.Warn(ctx, "sso token exchange failed", "err", err)
		http.Error(w, "failed to exchange token", http.StatusBadGateway)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusBadGateway)
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		s.log.Warn(ctx, "sso id token rejected", "err", err)
		http.Error(w, "failed to verify token", http.StatusUnauthorized)
		return
	}

	var claims struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	if err = idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusBadGateway)
		return
	}

	username := sanitize.Input(claims.Email, sanitize.Email)
	if username == "" {
		username = sanitize.Input(claims.Sub, sanitize.String)
	}

	sess, err := s.auth.LoginWithUser(ctx, sessionFrom(ctx), username, clientInfo(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess.ID)
	_ = s.flash.Set(ctx, sess, domain.FlashSuccess, "Signed in as "+sess.Username+".")

	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
