package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/sugoi/internal/plugin"
)

// PluginHandler handles /api/plugins.
type PluginHandler struct {
	plugins Plugins
}

// NewPluginHandler creates a PluginHandler.
func NewPluginHandler(p Plugins) *PluginHandler {
	return &PluginHandler{plugins: p}
}

type listPluginsResponse struct {
	Plugins []plugin.Descriptor `json:"plugins"`
}

// ServeHTTP routes GET /api/plugins and PUT /api/plugins/{identity}.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/plugins"), "/")

	if identity == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w)
		return
	}

	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.update(w, r, identity)
}

func (h *PluginHandler) list(w http.ResponseWriter) {
	descriptors, err := h.plugins.Descriptors()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listPluginsResponse{Plugins: descriptors})
}

func (h *PluginHandler) update(w http.ResponseWriter, r *http.Request, identity string) {
	var req plugin.Update
	if !decode(w, r, &req) {
		return
	}
	d, err := h.plugins.Apply(identity, req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
