package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/hltracker/internal/models"
)

func do(t *testing.T, h http.Handler, method, target, body string, authorized bool) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer secret-token")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleServers(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	ctx := context.Background()
	s.process(ctx, registration("10.0.0.2", 2, "Zulu", "last", ""))
	s.process(ctx, registration("10.0.0.1", 1, "Alpha", "first", ""))

	rec := do(t, s.Handler(), http.MethodGet, "/api/servers", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var servers []models.Server
	if err := json.NewDecoder(rec.Body).Decode(&servers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("servers: got %d, want 2", len(servers))
	}
	if servers[0].Name != "Alpha" || servers[0].Address != "10.0.0.1" || servers[1].Name != "Zulu" {
		t.Errorf("servers: got %+v", servers)
	}
	if servers[0].LastSeen.IsZero() || time.Since(servers[0].LastSeen) > time.Minute {
		t.Errorf("LastSeen: got %v", servers[0].LastSeen)
	}
}

func TestHandleServers_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Count = 2
	cfg.RateLimit.Window = time.Hour
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	for i := range 2 {
		if rec := do(t, h, http.MethodGet, "/api/servers", "", false); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/servers", "", false); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request: got %d, want 429", rec.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(t, s.Handler(), http.MethodGet, "/api/version", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStats(t *testing.T) {
	s, store := newTestServer(t, testConfig())
	ctx := context.Background()
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/api/stats", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: got %d, want 401", rec.Code)
	}

	reg := registration("10.0.0.1", 1, "Alpha", "", "")
	reg.Record.UsersOnline = 4
	s.process(ctx, reg)
	if err := store.AddBan(ctx, "10.9.9.9", ""); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/api/stats", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var stats models.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := models.Stats{Servers: 1, UsersOnline: 4, Banned: 1}
	if stats != want {
		t.Errorf("stats: got %+v, want %+v", stats, want)
	}
}

func TestBanlistAPI(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	h := s.Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"add", http.MethodPost, "/api/banlist", `{"address":"10.0.0.3","notes":"spam"}`, http.StatusCreated},
		{"duplicate", http.MethodPost, "/api/banlist", `{"address":"10.0.0.3"}`, http.StatusConflict},
		{"invalid address", http.MethodPost, "/api/banlist", `{"address":"2001:db8::1"}`, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/api/banlist", `{`, http.StatusBadRequest},
		{"remove", http.MethodDelete, "/api/banlist?address=10.0.0.3", "", http.StatusOK},
		{"remove missing", http.MethodDelete, "/api/banlist?address=10.0.0.3", "", http.StatusNotFound},
		{"remove without address", http.MethodDelete, "/api/banlist", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.target, tt.body, true); rec.Code != tt.want {
				t.Errorf("got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	if rec := do(t, h, http.MethodPost, "/api/banlist", `{"address":"10.0.0.8"}`, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: got %d, want 401", rec.Code)
	}
}

func TestPasswordsAPI(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/passwords", `{"password":"s3cret","notes":"ops"}`, true); rec.Code != http.StatusCreated {
		t.Fatalf("add: got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/passwords", `{"notes":"empty"}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("add empty: got %d, want 400", rec.Code)
	}
	long := `{"password":"` + strings.Repeat("x", 256) + `"}`
	if rec := do(t, h, http.MethodPost, "/api/passwords", long, true); rec.Code != http.StatusBadRequest {
		t.Errorf("add too long: got %d, want 400", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/passwords", "", true)
	var entries []models.PasswordEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Password != "s3cret" || entries[0].Notes != "ops" {
		t.Errorf("entries: got %+v", entries)
	}

	if rec := do(t, h, http.MethodDelete, "/api/passwords?password=s3cret", "", true); rec.Code != http.StatusOK {
		t.Errorf("remove: got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/passwords", "", true)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("list after remove: got %s", body)
	}
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if got := GetRealIP(req, false); got != "192.0.2.1" {
		t.Errorf("untrusted: got %q", got)
	}
	if got := GetRealIP(req, true); got != "203.0.113.5" {
		t.Errorf("trusted XFF: got %q", got)
	}

	req.Header.Set("CF-Connecting-IP", "198.51.100.7")
	if got := GetRealIP(req, true); got != "198.51.100.7" {
		t.Errorf("trusted CF: got %q", got)
	}
}

func TestAdminAuthMiddleware_EmptyToken(t *testing.T) {
	h := AdminAuthMiddleware("", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}
