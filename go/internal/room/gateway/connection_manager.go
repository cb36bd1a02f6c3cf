package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/estimate/go/internal/room"
	"github.com/mcdev12/estimate/go/internal/room/coordinator"
)

const (
	dispatchTimeout = 5 * time.Second
	noticeRateLimit = "rate limit exceeded"
)

var (
	errConnectionClosed = errors.New("connection closed")
	errSendBufferFull   = errors.New("send buffer full")
)

// RoomHub is the part of the coordinator used by the transport.
type RoomHub interface {
	Init(ctx context.Context, roomID, hostName string, mode room.Mode) (*room.State, bool, error)
	Connect(ctx context.Context, roomID string, obs coordinator.Observer) error
	Disconnect(roomID string, obs coordinator.Observer)
	Dispatch(ctx context.Context, roomID string, obs coordinator.Observer, payload []byte) error
	Snapshot(ctx context.Context, roomID string) (*room.State, error)
	ActiveRooms() int
}

// ConnectionManager upgrades room WebSocket connections and tracks them
// per room.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	hub      RoomHub
}

// Connection is one WebSocket client of a room. It implements
// coordinator.Observer.
type Connection struct {
	id      string
	RoomID  string
	Conn    *websocket.Conn
	Manager *ConnectionManager

	outbox  chan []byte
	limiter *rate.Limiter

	closeOnce  sync.Once
	closing    chan struct{}
	closeFrame []byte

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	// RateLimit is the sustained number of actions per second a connection
	// may submit, with bursts up to RateBurst.
	RateLimit   rate.Limit
	RateBurst   int
	CheckOrigin func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		RateLimit:       20,
		RateBurst:       40,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, hub RoomHub) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		hub:    hub,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and attaches it
// to the room. The client receives the current projection right away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, roomID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		id:          uuid.NewString(),
		RoomID:      roomID,
		Conn:        conn,
		Manager:     cm,
		outbox:      make(chan []byte, cm.config.SendBufferSize),
		limiter:     rate.NewLimiter(cm.config.RateLimit, cm.config.RateBurst),
		closing:     make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(c)
	go c.writePump()

	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()
	if err := cm.hub.Connect(ctx, roomID, c); err != nil {
		// The coordinator already notified and closed the client.
		cm.unregisterConnection(c)
		c.Close(websocket.CloseNormalClosure, "")
		log.Info().Err(err).Str("room_id", roomID).Str("connection_id", c.id).Msg("rejected room connection")
		return nil
	}

	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("room_id", roomID).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[c.RoomID] == nil {
		cm.roomConnections[c.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[c.RoomID][c] = true

	log.Debug().
		Str("connection_id", c.id).
		Str("room_id", c.RoomID).
		Int("total_connections", len(cm.roomConnections[c.RoomID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.roomConnections[c.RoomID]
	if !exists || !connections[c] {
		return
	}
	delete(connections, c)
	if len(connections) == 0 {
		delete(cm.roomConnections, c.RoomID)
	}

	log.Debug().
		Str("connection_id", c.id).
		Str("room_id", c.RoomID).
		Msg("connection unregistered")
}

// ConnectionStats summarizes the connections held by this gateway.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ConnectedRooms   int            `json:"connected_rooms"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ConnectedRooms:  len(cm.roomConnections),
		ActiveRooms:     cm.hub.ActiveRooms(),
		RoomConnections: make(map[string]int, len(cm.roomConnections)),
	}
	for roomID, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[roomID] = len(connections)
	}
	return stats
}

func (c *Connection) ID() string { return c.id }

// Send queues data for the write pump without blocking.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.closing:
		return errConnectionClosed
	default:
	}

	select {
	case c.outbox <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close flushes queued frames, sends a close frame and terminates the
// connection. Safe to call more than once and from any goroutine.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeFrame = websocket.FormatCloseMessage(code, reason)
		close(c.closing)
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.outbox:
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("failed to send ping")
				return
			}

		case <-c.closing:
			c.flush()
			_ = c.write(websocket.CloseMessage, c.closeFrame)
			return
		}
	}
}

// flush writes whatever is still queued, so that a notice sent right before
// closing reaches the client.
func (c *Connection) flush() {
	for {
		select {
		case message := <-c.outbox:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.hub.Disconnect(c.RoomID, c)
		c.Manager.unregisterConnection(c)
		c.Close(websocket.CloseNormalClosure, "")
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		if stop := c.handleClientMessage(message); stop {
			return
		}
	}
}

// handleClientMessage forwards one action to the room and reports whether
// the connection should stop reading.
func (c *Connection) handleClientMessage(message []byte) bool {
	if !c.limiter.Allow() {
		_ = c.Send(coordinator.EncodeNotice(noticeRateLimit))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	err := c.Manager.hub.Dispatch(ctx, c.RoomID, c, message)
	switch {
	case err == nil:
		return false
	case errors.Is(err, room.ErrMalformedAction):
		log.Debug().Err(err).Str("connection_id", c.id).Msg("malformed client message")
		return false
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, coordinator.ErrRoomUnavailable),
		errors.Is(err, coordinator.ErrHubClosed):
		return true
	default:
		log.Error().Err(err).Str("connection_id", c.id).Str("room_id", c.RoomID).Msg("failed to dispatch action")
		return false
	}
}
