// Package api provides the HTTP API handlers for sugoi.
package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/ayusman/sugoi/internal/hooks"
	"github.com/ayusman/sugoi/internal/output"
	"github.com/ayusman/sugoi/internal/plugin"
	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
	"github.com/ayusman/sugoi/internal/session"
	"github.com/ayusman/sugoi/internal/store"
)

// Session is the session controller as seen by the API.
type Session interface {
	Status() session.Status
	Attach(pid int, variant protocol.Variant) error
	Detach() error
	SelectHook(hookID string) error
	ManualHook(code string) error
	ClearOutput() error
	Hooks() []hooks.Record
}

// Plugins is the plugin registry as seen by the API. Implementations run on the control loop.
type Plugins interface {
	Descriptors() ([]plugin.Descriptor, error)
	Apply(identity string, u plugin.Update) (plugin.Descriptor, error)
}

// Profiles lists and removes game profiles.
type Profiles interface {
	List() ([]profile.Profile, error)
	Delete(id profile.Identity) error
}

// Output is the accumulated output text.
type Output interface {
	String() string
	Stats() output.Stats
	SaveTo(path string) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps err to a status code and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var attachErr *session.AttachError
	switch {
	case errors.Is(err, plugin.ErrPluginNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrUnknownHook):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidPID),
		errors.Is(err, protocol.ErrUnknownVariant),
		errors.Is(err, protocol.ErrInvalidHookCode),
		errors.Is(err, plugin.ErrInvalidSetting),
		errors.Is(err, plugin.ErrUnknownSetting),
		errors.Is(err, output.ErrEmpty),
		errors.Is(err, ErrInvalidFileName):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrAlreadyAttached),
		errors.Is(err, session.ErrNotAttached):
		return http.StatusConflict
	case errors.Is(err, session.ErrWrite),
		errors.As(err, &attachErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body. Other content types are refused so that plain cross-site
// form posts cannot reach the handlers.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}
