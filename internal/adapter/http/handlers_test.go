package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	adapthttp "mfgrecords/internal/adapter/http"
	"mfgrecords/internal/adapter/memory"
	"mfgrecords/internal/app"
	"mfgrecords/internal/cache"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

type testEnv struct {
	ts       *httptest.Server
	db       *memory.DB
	sessions *memory.SessionStore
	hasher   app.PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := memory.New()
	sessionStore := memory.NewSessionStore(db)
	log := logging.Nop()

	store, err := cache.New(cache.Config{Enabled: true, Dir: t.TempDir()}, log)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	hasher := app.NewPasswordHasher(bcrypt.MinCost)
	sessions := app.NewSessionService(sessionStore, 30*time.Minute, log)
	activity := app.NewActivityLogger(memory.NewActivityRepo(db), log)
	flash := app.NewFlashService(sessionStore, log)
	auth := app.NewAuthService(db, sessions, hasher, store, activity, log)
	products := app.NewProductService(memory.NewProductRepo(db), memory.NewMaterialRepo(db), store)

	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}

	srv := adapthttp.New(adapthttp.Deps{
		Auth:     auth,
		Sessions: sessions,
		Flash:    flash,
		Activity: activity,
		Products: products,
		Logger:   log,
		WebDir:   webDir,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, db: db, sessions: sessionStore, hasher: hasher}
}

func (e *testEnv) addUser(t *testing.T, username, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatal(err)
	}
	u, err := e.db.Create(context.Background(), &domain.User{
		Username: username, PasswordHash: hash, Role: role, Active: true, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// client is a browser stand-in: it keeps cookies and echoes the CSRF token.
type client struct {
	t    *testing.T
	base string
	http *http.Client
	csrf string
}

func (e *testEnv) newClient(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: e.ts.URL, http: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *client) do(method, path string, payload any) (int, map[string]any) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, _ := io.ReadAll(resp.Body)
	var m map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &m); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode, m
}

func (c *client) doList(path string) (int, []map[string]any) {
	c.t.Helper()
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	var items []map[string]any
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode, items
}

func (c *client) fetchCSRF() {
	c.t.Helper()
	status, body := c.do(http.MethodGet, "/api/csrf", nil)
	if status != http.StatusOK {
		c.t.Fatalf("csrf: expected 200, got %d", status)
	}
	c.csrf, _ = body["csrf_token"].(string)
	if c.csrf == "" {
		c.t.Fatal("csrf: empty token")
	}
}

func (c *client) login(username, password string) {
	c.t.Helper()
	c.fetchCSRF()
	status, body := c.do(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password})
	if status != http.StatusOK {
		c.t.Fatalf("login: expected 200, got %d (%v)", status, body)
	}
	c.csrf, _ = body["csrf_token"].(string)
}

func (c *client) flash() map[string]any {
	c.t.Helper()
	_, body := c.do(http.MethodGet, "/api/flash", nil)
	f, _ := body["flash"].(map[string]any)
	return f
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(resp.Cookies()) != 0 {
		t.Fatal("health check must not start a session")
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "s3cret", domain.RoleAdmin)
	c := env.newClient(t)

	status, _ := c.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "s3cret"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", status)
	}

	c.csrf = "forged"
	status, _ = c.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "s3cret"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 with forged token, got %d", status)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "s3cret", domain.RoleManager)
	c := env.newClient(t)

	if status, _ := c.do(http.MethodGet, "/api/me", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", status)
	}

	c.login("alice", "s3cret")

	status, me := c.do(http.MethodGet, "/api/me", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if me["username"] != "alice" || me["role"] != "manager" {
		t.Fatalf("unexpected user: %v", me)
	}
	if _, ok := me["password_hash"]; ok {
		t.Fatal("password hash leaked")
	}

	f := c.flash()
	if f == nil || f["kind"] != "success" {
		t.Fatalf("expected success flash, got %v", f)
	}
	if again := c.flash(); again != nil {
		t.Fatalf("flash must be shown once, got %v", again)
	}

	if status, _ := c.do(http.MethodPost, "/api/logout", nil); status != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", status)
	}
	if status, _ := c.do(http.MethodGet, "/api/me", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}

	records, _ := memory.NewActivityRepo(env.db).ListRecent(context.Background(), 10)
	if len(records) != 2 || records[0].Action != "logout" || records[1].Action != "login" {
		t.Fatalf("unexpected activity: %+v", records)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "s3cret", domain.RoleAdmin)
	c := env.newClient(t)
	c.fetchCSRF()

	status, _ := c.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if f := c.flash(); f == nil || f["kind"] != "danger" {
		t.Fatalf("expected danger flash, got %v", f)
	}
}

func TestExpiredSessionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "alice", "s3cret", domain.RoleAdmin)

	stale := &domain.Session{
		ID:           "stale-session",
		UserID:       u.ID,
		Username:     u.Username,
		Role:         u.Role,
		LastActivity: time.Now().Add(-31 * time.Minute),
		CreatedAt:    time.Now().Add(-2 * time.Hour),
	}
	if err := env.sessions.Save(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: stale.ID})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != app.ErrSessionExpired.Error() {
		t.Fatalf("expected session expired error, got %v", body)
	}
	if got, _ := env.sessions.Get(context.Background(), stale.ID); got != nil {
		t.Fatal("expired session was not destroyed")
	}
}

func TestSetupFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.newClient(t)

	_, body := c.do(http.MethodGet, "/api/setup", nil)
	if body["needs_setup"] != true {
		t.Fatalf("expected needs_setup, got %v", body)
	}

	c.fetchCSRF()
	creds := map[string]string{"username": "root", "password": "changeme"}
	if status, _ := c.do(http.MethodPost, "/api/setup", creds); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if status, _ := c.do(http.MethodPost, "/api/setup", creds); status != http.StatusConflict {
		t.Fatalf("expected 409 once users exist, got %d", status)
	}

	c.login("root", "changeme")
	_, me := c.do(http.MethodGet, "/api/me", nil)
	if me["role"] != "admin" {
		t.Fatalf("initial user must be admin, got %v", me["role"])
	}
}

func TestRoleChecks(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "val", "pw", domain.RoleViewer)
	c := env.newClient(t)
	c.login("val", "pw")

	if status, _ := c.doList("/api/products"); status != http.StatusOK {
		t.Fatalf("viewer list: expected 200, got %d", status)
	}
	status, _ := c.do(http.MethodPost, "/api/products", map[string]any{"sku": "A-1", "name": "Bracket"})
	if status != http.StatusForbidden {
		t.Fatalf("viewer create: expected 403, got %d", status)
	}
	if status, _ := c.doList("/api/activity"); status != http.StatusForbidden {
		t.Fatalf("viewer activity: expected 403, got %d", status)
	}
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "s3cret", domain.RoleAdmin)
	c := env.newClient(t)
	c.login("alice", "s3cret")
	c.flash()

	status, p := c.do(http.MethodPost, "/api/products", map[string]any{
		"sku": "BRK-100", "name": "Bracket <b>steel</b>", "unit_price": 12.5,
	})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%v)", status, p)
	}
	if p["name"] != "Bracket steel" {
		t.Fatalf("expected sanitized name, got %q", p["name"])
	}
	id := int64(p["id"].(float64))
	if f := c.flash(); f == nil || f["kind"] != "success" {
		t.Fatalf("expected success flash, got %v", f)
	}

	status, _ = c.do(http.MethodPost, "/api/products", map[string]any{"sku": "BRK-100", "name": "Other"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", status)
	}
	if f := c.flash(); f == nil || f["kind"] != "danger" {
		t.Fatalf("expected danger flash, got %v", f)
	}

	status, _ = c.do(http.MethodPost, "/api/products", map[string]any{"sku": "", "name": "Nameless"})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid: expected 400, got %d", status)
	}

	_, steel := c.do(http.MethodPost, "/api/materials", map[string]any{"name": "Steel", "unit": "kg", "unit_cost": 4.0})
	_, bolt := c.do(http.MethodPost, "/api/materials", map[string]any{"name": "Bolt", "unit_cost": 0.25})

	path := "/api/products/" + strconv.FormatInt(id, 10)
	status, _ = c.do(http.MethodPut, path+"/materials", map[string]any{"lines": []map[string]any{
		{"material_id": steel["id"], "quantity": 1.5},
		{"material_id": bolt["id"], "quantity": 4},
	}})
	if status != http.StatusOK {
		t.Fatalf("set bom: expected 200, got %d", status)
	}

	_, cost := c.do(http.MethodGet, path+"/cost", nil)
	if cost["production_cost"] != 7.0 {
		t.Fatalf("expected cost 7, got %v", cost["production_cost"])
	}

	status, _ = c.do(http.MethodPut, path+"/materials", map[string]any{"lines": []map[string]any{
		{"material_id": steel["id"], "quantity": 2},
	}})
	if status != http.StatusOK {
		t.Fatalf("replace bom: expected 200, got %d", status)
	}
	_, cost = c.do(http.MethodGet, path+"/cost", nil)
	if cost["production_cost"] != 8.0 {
		t.Fatalf("cost must be recomputed after bom change, got %v", cost["production_cost"])
	}

	status, updated := c.do(http.MethodPut, path, map[string]any{"sku": "BRK-100", "name": "Bracket XL", "unit_price": 14})
	if status != http.StatusOK || updated["name"] != "Bracket XL" {
		t.Fatalf("update: got %d %v", status, updated)
	}

	if status, _ := c.do(http.MethodDelete, path, nil); status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", status)
	}
	if status, _ := c.do(http.MethodGet, path, nil); status != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", status)
	}
	if status, _ := c.do(http.MethodGet, "/api/products/abc", nil); status != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", status)
	}

	status, records := c.doList("/api/activity?limit=50")
	if status != http.StatusOK {
		t.Fatalf("activity: expected 200, got %d", status)
	}
	actions := map[string]int{}
	for _, r := range records {
		actions[r["action"].(string)]++
	}
	want := map[string]int{"login": 1, "product_create": 1, "material_create": 2, "bom_update": 2, "product_update": 1, "product_delete": 1}
	for action, n := range want {
		if actions[action] != n {
			t.Errorf("activity %q: expected %d, got %d", action, n, actions[action])
		}
	}
}

func TestProductTextSurvivesRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "s3cret", domain.RoleManager)
	c := env.newClient(t)
	c.login("alice", "s3cret")

	status, p := c.do(http.MethodPost, "/api/products", map[string]any{
		"sku": "NUT-5", "name": "Nuts & Bolts", "description": `5" wide <i>zinc</i>`,
	})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%v)", status, p)
	}
	path := "/api/products/" + strconv.FormatInt(int64(p["id"].(float64)), 10)

	for range 2 {
		_, got := c.do(http.MethodGet, path, nil)
		status, saved := c.do(http.MethodPut, path, map[string]any{
			"sku": got["sku"], "name": got["name"], "description": got["description"], "unit_price": got["unit_price"],
		})
		if status != http.StatusOK {
			t.Fatalf("update: expected 200, got %d (%v)", status, saved)
		}
		if saved["name"] != "Nuts & Bolts" || saved["description"] != `5" wide zinc` {
			t.Fatalf("text changed on round trip: %q / %q", saved["name"], saved["description"])
		}
	}
}

func TestSSODisabled(t *testing.T) {
	env := newTestEnv(t)
	c := env.newClient(t)

	if status, _ := c.do(http.MethodGet, "/auth/sso/login", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	_, cfg := c.do(http.MethodGet, "/api/config", nil)
	if cfg["sso_enabled"] != false {
		t.Fatalf("expected sso disabled, got %v", cfg)
	}
}

func TestSPAFallback(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/products/42")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(b) != "<html></html>" {
		t.Fatalf("expected index.html, got %d %q", resp.StatusCode, b)
	}
}
