package server

import (
	"cmp"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/hltracker/internal/macroman"
	"github.com/woozymasta/hltracker/internal/models"
	"github.com/woozymasta/hltracker/internal/registry"
	"github.com/woozymasta/hltracker/internal/storage"
	"github.com/woozymasta/hltracker/internal/vars"
)

// maxBody is the largest accepted admin request body.
const maxBody = 4096

// Handler configures the HTTP routes and returns the main handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/servers", s.RateLimitMiddleware(http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/version", s.RateLimitMiddleware(http.HandlerFunc(s.handleVersion)))
	mux.Handle("GET /api/stats", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleStats)))

	mux.Handle("GET /api/banlist", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleListBans)))
	mux.Handle("POST /api/banlist", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleAddBan)))
	mux.Handle("DELETE /api/banlist", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleRemoveBan)))

	mux.Handle("GET /api/passwords", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleListPasswords)))
	mux.Handle("POST /api/passwords", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleAddPassword)))
	mux.Handle("DELETE /api/passwords", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleRemovePassword)))

	return s.LoggingMiddleware(mux)
}

// entryRequest is the body of POST /api/banlist and POST /api/passwords.
type entryRequest struct {
	Address  string `json:"address,omitempty"`
	Password string `json:"password,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// handleServers returns the live servers, ordered by name.
func (s *Server) handleServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.servers())
}

func (s *Server) servers() []models.Server {
	entries := s.registry.Entries()
	out := make([]models.Server, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.toModel(e))
	}

	slices.SortFunc(out, func(a, b models.Server) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return out
}

func (s *Server) toModel(e registry.Entry) models.Server {
	return models.Server{
		LastSeen:    e.LastSeen.UTC(),
		Address:     e.Server.Address.String(),
		Name:        e.Server.Name.String(),
		Description: e.Server.Description.String(),
		CountryCode: s.geoip.CountryCode(e.Server.Address),
		ID:          e.ID,
		Port:        e.Server.Port,
		UsersOnline: e.Server.UsersOnline,
	}
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleStats returns tracker totals.
// This endpoint is protected by AdminAuthMiddleware.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	servers := s.servers()
	stats := models.Stats{Servers: len(servers)}
	for _, srv := range servers {
		stats.UsersOnline += int(srv.UsersOnline)
	}

	var err error
	if stats.Banned, err = s.storage.CountBans(r.Context()); err != nil {
		respondStorageError(w, err)
		return
	}
	if stats.Passwords, err = s.storage.CountPasswords(r.Context()); err != nil {
		respondStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	entries, err := s.storage.ListBans(r.Context())
	if err != nil {
		respondStorageError(w, err)
		return
	}
	if entries == nil {
		entries = []models.BanlistEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddBan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	if err := s.storage.AddBan(r.Context(), req.Address, req.Notes); err != nil {
		respondStorageError(w, err)
		return
	}

	log.Info().Str("address", req.Address).Msg("Address banned via API")
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// handleRemoveBan lifts a ban. Query params: ?address=1.2.3.4
func (s *Server) handleRemoveBan(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		http.Error(w, "Missing address", http.StatusBadRequest)
		return
	}

	if err := s.storage.RemoveBan(r.Context(), address); err != nil {
		respondStorageError(w, err)
		return
	}

	log.Info().Str("address", address).Msg("Ban lifted via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPasswords(w http.ResponseWriter, r *http.Request) {
	entries, err := s.storage.ListPasswords(r.Context())
	if err != nil {
		respondStorageError(w, err)
		return
	}
	if entries == nil {
		entries = []models.PasswordEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	if req.Password == "" {
		http.Error(w, "Missing password", http.StatusBadRequest)
		return
	}

	if err := s.storage.AddPassword(r.Context(), req.Password, req.Notes); err != nil {
		respondStorageError(w, err)
		return
	}

	log.Info().Msg("Password added via API")
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// handleRemovePassword deletes a password. Query params: ?password=secret
func (s *Server) handleRemovePassword(w http.ResponseWriter, r *http.Request) {
	password := r.URL.Query().Get("password")
	if password == "" {
		http.Error(w, "Missing password", http.StatusBadRequest)
		return
	}

	if err := s.storage.RemovePassword(r.Context(), password); err != nil {
		respondStorageError(w, err)
		return
	}

	log.Info().Msg("Password removed via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (entryRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return req, false
	}

	return req, true
}

// respondStorageError maps storage errors to HTTP statuses.
func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidAddress), errors.Is(err, macroman.ErrTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("Storage request failed")
		http.Error(w, "Database Error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
