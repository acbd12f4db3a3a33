package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/middleware"
)

type loginRequest struct {
	Email string `json:"email"`
}

// LoginHandler handles POST /v1/settings/login: the login email preference
// changed in the UI.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !s.Login.OnLoginEmailChanged(r.Context(), req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"accepted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

// GetSettingsHandler handles GET /v1/settings?key=a&key=b. Without keys the
// login email is returned.
func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		keys = []string{s.Login.Key}
	}
	values, err := s.Settings.GetStrings(r.Context(), keys...)
	if err != nil {
		middleware.LoggerFromRequest(r, s.Logger).Error("read settings", zap.Strings("keys", keys), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, values)
}
