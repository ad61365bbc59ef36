package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timekeeper/go/internal/hub"
	"github.com/mcdev12/timekeeper/go/internal/timekeeper"
	"github.com/mcdev12/timekeeper/go/internal/timer"
)

// StatsProvider reports subscriber counts for the stats endpoint.
type StatsProvider interface {
	GetStats() hub.Stats
}

// Handler exposes the websocket upgrade and the REST fallback over the
// control surface.
type Handler struct {
	control ControlSurface
	manager *ConnectionManager
	stats   StatsProvider
	port    int
}

// NewHandler creates the transport handler. port is the externally
// advertised listen port, used for the join URLs.
func NewHandler(control ControlSurface, manager *ConnectionManager, stats StatsProvider, port int) *Handler {
	return &Handler{
		control: control,
		manager: manager,
		stats:   stats,
		port:    port,
	}
}

// RegisterRoutes registers gateway routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebsocket)
	mux.HandleFunc("/ws/stats", h.HandleStats)
	mux.HandleFunc("/api/snapshot", h.HandleSnapshot)
	mux.HandleFunc("/api/cmd", h.HandleCommand)
	mux.HandleFunc("/api/join", h.HandleJoin)
	mux.HandleFunc("/admin", h.HandleAdmin)
	mux.HandleFunc("/display", h.HandleDisplay)
}

// HandleWebsocket upgrades a client connection. Role defaults to viewer;
// only role=controller connections may send commands on the socket.
func (h *Handler) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")

	role := hub.RoleViewer
	switch r.URL.Query().Get("role") {
	case "", string(hub.RoleViewer):
	case string(hub.RoleController):
		role = hub.RoleController
	default:
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	if err := h.manager.UpgradeConnection(w, r, sessionID, role); err != nil {
		if errors.Is(err, timekeeper.ErrUnknownSession) {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// HandleSnapshot serves the polling fallback and gap recovery: a one-shot
// consistent view of the session.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.control.GetSnapshot(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleCommand accepts the same JSON command body as the websocket, for
// controllers that prefer plain POSTs.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "malformed command", http.StatusBadRequest)
		return
	}

	snapshot, err := Dispatch(h.control, cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleJoin returns the LAN join URLs with QR codes.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BuildJoinInfo(h.port))
}

// HandleStats returns subscriber counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// writeError maps the core error taxonomy onto HTTP statuses. Invalid
// transitions are conflicts with the current phase, not bad requests.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, timer.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, timekeeper.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, timekeeper.ErrSessionExists):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
