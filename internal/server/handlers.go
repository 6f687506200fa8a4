package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calebmorris/go-song-funnel/internal/api"
	"github.com/calebmorris/go-song-funnel/internal/db"
	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	store Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("encoding response: %v", err)
		}
	}
}

// writeError maps storage errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, db.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "version conflict"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Health reports availability (GET /health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HasData reports whether any user data exists (GET /has-data).
func (h *Handlers) HasData(w http.ResponseWriter, r *http.Request) {
	has, err := h.store.HasData(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasData": has})
}

// ListThemes returns all themes (GET /themes).
func (h *Handlers) ListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.store.ListThemes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if themes == nil {
		themes = []funnel.Theme{}
	}
	writeJSON(w, http.StatusOK, themes)
}

// GetTheme returns one theme (GET /themes/{id}).
func (h *Handlers) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.store.GetTheme(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// CreateTheme stores a new theme with its nested songs (POST /themes).
func (h *Handlers) CreateTheme(w http.ResponseWriter, r *http.Request) {
	var theme funnel.Theme
	if err := json.NewDecoder(r.Body).Decode(&theme); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid theme payload"})
		return
	}
	if theme.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "theme id required"})
		return
	}
	if err := h.store.CreateTheme(r.Context(), theme); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, theme)
}

// UpdateTheme replaces a theme wholesale (PUT /themes/{id}).
func (h *Handlers) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var theme funnel.Theme
	if err := json.NewDecoder(r.Body).Decode(&theme); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid theme payload"})
		return
	}
	theme.ID = chi.URLParam(r, "id")
	if err := h.store.UpdateTheme(r.Context(), theme); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// DeleteTheme removes a theme (DELETE /themes/{id}).
func (h *Handlers) DeleteTheme(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTheme(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions returns all sessions (GET /sessions).
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// CreateSession stores a new session (POST /sessions).
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var s session.Session
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session payload"})
		return
	}
	if s.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id required"})
		return
	}
	if err := h.store.UpsertSession(r.Context(), s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// UpdateSession replaces a session wholesale (PUT /sessions/{id}).
func (h *Handlers) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var s session.Session
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session payload"})
		return
	}
	s.ID = chi.URLParam(r, "id")
	if err := h.store.UpsertSession(r.Context(), s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteSession removes a session (DELETE /sessions/{id}).
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSavedSongs returns the saved-songs library (GET /saved-songs).
func (h *Handlers) ListSavedSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.store.ListSavedSongs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if songs == nil {
		songs = []funnel.Song{}
	}
	writeJSON(w, http.StatusOK, songs)
}

// PutSavedSongs replaces the saved-songs library (PUT /saved-songs).
func (h *Handlers) PutSavedSongs(w http.ResponseWriter, r *http.Request) {
	var songs []funnel.Song
	if err := json.NewDecoder(r.Body).Decode(&songs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid songs payload"})
		return
	}
	if err := h.store.ReplaceSavedSongs(r.Context(), songs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Migrate bulk-imports a client's local data (POST /migrate).
func (h *Handlers) Migrate(w http.ResponseWriter, r *http.Request) {
	var payload api.MigratePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid migration payload"})
		return
	}
	if err := h.store.ImportAll(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
