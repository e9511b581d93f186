package v1

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/expenses/internal/settings"
)

// GET /v1/settings
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, s.prefs.Snapshot())
}

// PATCH /v1/settings
func (s *Server) patchSettings(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var p settings.Patch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	v, err := s.prefs.Apply(r.Context(), p)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, v)
}

// POST /v1/settings/{name}/toggle
func (s *Server) toggleSetting(w http.ResponseWriter, r *http.Request) {
	var (
		v   settings.Values
		err error
	)
	switch chi.URLParam(r, "name") {
	case settings.KeyDarkMode:
		v, err = s.prefs.ToggleDarkMode(r.Context())
	case settings.KeyCompactView:
		v, err = s.prefs.ToggleCompactView(r.Context())
	default:
		writeErr(w, http.StatusNotFound, "unknown setting", "not_found")
		return
	}
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, v)
}
