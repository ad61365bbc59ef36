package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timekeeper/go/internal/hub"
	"github.com/mcdev12/timekeeper/go/internal/timekeeper"
	"github.com/mcdev12/timekeeper/go/internal/timer"
)

// ServerFrame is one websocket message from server to client. An event frame
// with Stale set tells the client that events before it were dropped and it
// must re-fetch a snapshot.
type ServerFrame struct {
	Type     string               `json:"type"` // snapshot | event | error
	Snapshot *timekeeper.Snapshot `json:"snapshot,omitempty"`
	Event    *timer.StateEvent    `json:"event,omitempty"`
	Stale    bool                 `json:"stale,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns defaults suited to a LAN audience: small
// frames, generous read timeout kept alive by pings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// everyone on the venue network may join
			return true
		},
	}
}

// ConnectionManager upgrades websocket connections and runs their pumps.
// Each connection owns a hub subscription; the hub, not the manager, is the
// registry of who is attached to which session.
type ConnectionManager struct {
	control  ControlSurface
	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// NewConnectionManager creates a manager speaking to the given control surface.
func NewConnectionManager(control ControlSurface, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		control: control,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Connection is one websocket client. Frames are written only by writePump;
// readPump forwards controller command results through replies.
type Connection struct {
	ID        string
	SessionID string
	Role      hub.Role

	conn    *websocket.Conn
	sub     *hub.Subscriber
	replies chan ServerFrame
	manager *ConnectionManager

	mu     sync.Mutex
	closed bool
}

// UpgradeConnection upgrades an HTTP request, subscribes the client to its
// session and delivers the initial snapshot as the first frame.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID string, role hub.Role) error {
	sub, snapshot, err := cm.control.Subscribe(sessionID, role)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.control.Unsubscribe(sub)
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:        uuid.New().String(),
		SessionID: sub.SessionID,
		Role:      role,
		conn:      conn,
		sub:       sub,
		replies:   make(chan ServerFrame, 8),
		manager:   cm,
	}

	connection.sendReply(ServerFrame{Type: "snapshot", Snapshot: &snapshot})

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("session_id", connection.SessionID).
		Str("role", string(role)).
		Msg("websocket connection established")
	return nil
}

// teardown releases the hub subscription and closes the socket. Both pumps
// call it on exit; the hub absorbs the duplicate unsubscribe.
func (c *Connection) teardown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.replies)
	}
	c.mu.Unlock()
	c.manager.control.Unsubscribe(c.sub)
	c.conn.Close()
}

// sendReply queues a frame for this connection only. Dropped when the client
// is too far behind; replies are advisory, the event stream is authoritative.
func (c *Connection) sendReply(frame ServerFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.replies <- frame:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("reply queue full, dropping frame")
	}
}

func (c *Connection) writeFrame(frame ServerFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// writePump is the single writer for the socket: it interleaves hub
// envelopes, per-connection replies and keepalive pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case env, ok := <-c.sub.Events():
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := ServerFrame{Type: "event", Event: env.Event, Stale: env.Stale}
			if err := c.writeFrame(frame); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write event frame")
				return
			}

		case frame, ok := <-c.replies:
			if !ok {
				return
			}
			if err := c.writeFrame(frame); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write reply frame")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump consumes client frames. Controllers send commands; anything from a
// viewer besides pongs is ignored.
func (c *Connection) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.handleClientMessage(message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// handleClientMessage dispatches a controller command. Errors go back to the
// issuing connection as an error frame; accepted commands are observed via
// the broadcast stream like every other client.
func (c *Connection) handleClientMessage(message []byte) {
	if c.Role != hub.RoleController {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("ignoring message from viewer connection")
		return
	}

	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.sendReply(ServerFrame{Type: "error", Error: "malformed command"})
		return
	}
	if cmd.Session == "" {
		cmd.Session = c.SessionID
	}

	if _, err := Dispatch(c.manager.control, cmd); err != nil {
		var invalid *timer.InvalidTransitionError
		if errors.As(err, &invalid) {
			log.Debug().
				Str("connection_id", c.ID).
				Str("action", cmd.Action).
				Str("phase", string(invalid.Phase)).
				Msg("command rejected")
		} else {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Str("action", cmd.Action).
				Msg("command failed")
		}
		c.sendReply(ServerFrame{Type: "error", Error: err.Error()})
	}
}
