package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/sugoi/internal/output"
)

// ErrInvalidFileName is returned when a save request names anything but a plain file.
var ErrInvalidFileName = errors.New("name must be a plain file name")

// OutputHandler handles /api/output.
type OutputHandler struct {
	output  Output
	session Session
	saveDir string
}

// NewOutputHandler creates an OutputHandler. Clearing goes through the session so that
// plugins are reset with the text. Saved files land in saveDir; saving is disabled when
// saveDir is empty.
func NewOutputHandler(o Output, s Session, saveDir string) *OutputHandler {
	return &OutputHandler{output: o, session: s, saveDir: saveDir}
}

type outputResponse struct {
	Text  string       `json:"text"`
	Stats output.Stats `json:"stats"`
}

type saveRequest struct {
	Name string `json:"name"`
}

// ServeHTTP routes /api/output and /api/output/save.
func (h *OutputHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/output"), "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, outputResponse{Text: h.output.String(), Stats: h.output.Stats()})
	case rest == "" && r.Method == http.MethodDelete:
		if err := h.session.ClearOutput(); err != nil {
			writeFailure(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case rest == "save" && r.Method == http.MethodPost:
		h.save(w, r)
	case rest == "" || rest == "save":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *OutputHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decode(w, r, &req) {
		return
	}
	if h.saveDir == "" {
		writeError(w, http.StatusForbidden, "saving is disabled")
		return
	}
	path, err := savePath(h.saveDir, req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := os.MkdirAll(h.saveDir, 0755); err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.output.SaveTo(path); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// savePath joins name to dir. Names with separators, "." or ".." are rejected.
func savePath(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", ErrInvalidFileName
	}
	return filepath.Join(dir, name), nil
}
