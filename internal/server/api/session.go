package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/sugoi/internal/hooks"
	"github.com/ayusman/sugoi/internal/protocol"
)

// SessionHandler handles /api/session and /api/hooks.
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(s Session) *SessionHandler {
	return &SessionHandler{session: s}
}

type attachRequest struct {
	PID    int    `json:"pid"`
	Engine string `json:"engine"`
}

type selectRequest struct {
	HookID string `json:"hook_id"`
}

type manualRequest struct {
	Code string `json:"code"`
}

type hooksResponse struct {
	Hooks []hooks.Record `json:"hooks"`
}

// ServeHTTP routes /api/session[/action] and /api/hooks.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/hooks" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, hooksResponse{Hooks: h.session.Hooks()})
		return
	}

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")
	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.session.Status())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch action {
	case "attach":
		h.attach(w, r)
	case "detach":
		h.respond(w, h.session.Detach())
	case "select":
		h.selectHook(w, r)
	case "manual":
		h.manual(w, r)
	default:
		writeError(w, http.StatusNotFound, "Unknown session action")
	}
}

func (h *SessionHandler) attach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PID <= 0 {
		writeError(w, http.StatusBadRequest, "pid is required")
		return
	}
	variant, err := protocol.ParseVariant(req.Engine)
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.respond(w, h.session.Attach(req.PID, variant))
}

func (h *SessionHandler) selectHook(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.HookID == "" {
		writeError(w, http.StatusBadRequest, "hook_id is required")
		return
	}
	h.respond(w, h.session.SelectHook(req.HookID))
}

func (h *SessionHandler) manual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, h.session.ManualHook(req.Code))
}

// respond writes the session status on success.
func (h *SessionHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}
