package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/sugoi/internal/profile"
)

// ProfileHandler handles /api/profiles.
type ProfileHandler struct {
	profiles Profiles
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(p Profiles) *ProfileHandler {
	return &ProfileHandler{profiles: p}
}

type listProfilesResponse struct {
	Profiles []profile.Profile `json:"profiles"`
}

// ServeHTTP routes GET /api/profiles and DELETE /api/profiles/{identity}.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/profiles"), "/")

	if id == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		profiles, err := h.profiles.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list profiles")
			return
		}
		if profiles == nil {
			profiles = []profile.Profile{}
		}
		writeJSON(w, http.StatusOK, listProfilesResponse{Profiles: profiles})
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.profiles.Delete(profile.Identity(id)); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
