package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/estimate/go/internal/room"
	"github.com/mcdev12/estimate/go/internal/room/events"
	"github.com/mcdev12/estimate/go/internal/room/storage"
)

var (
	// ErrHubClosed is returned for requests made after Shutdown.
	ErrHubClosed = errors.New("coordinator is shut down")

	// ErrRoomUnavailable is returned when a room's state could not be
	// loaded. Nothing is cached: the next request loads it again.
	ErrRoomUnavailable = errors.New("room temporarily unavailable")
)

// maxAttempts bounds how often a request is re-sent when the room's actor
// stops between lookup and delivery.
const maxAttempts = 3

// Observer is a connected client of a room.
type Observer interface {
	// ID is unique among the observers of a room.
	ID() string
	// Send queues a frame. It must not block; an error drops the observer.
	Send(data []byte) error
	// Close terminates the connection with a WebSocket close code.
	Close(code int, reason string)
}

// Hub routes requests to one actor goroutine per room. Each actor is the
// only writer of its room's state; rooms never share mutable state.
type Hub struct {
	cfg       Config
	store     storage.Store
	clock     clockwork.Clock
	publisher events.Publisher
	env       room.Env

	mu     sync.Mutex
	rooms  map[string]*actor
	closed bool
	wg     sync.WaitGroup

	// Room events are handed to one publisher goroutine so that a slow
	// broker never holds up a room.
	eventQueue    chan events.RoomEvent
	publisherDone chan struct{}
	closeEvents   sync.Once
}

func NewHub(cfg Config, store storage.Store, clock clockwork.Clock, publisher events.Publisher) *Hub {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	h := &Hub{
		cfg:       cfg,
		store:     store,
		clock:     clock,
		publisher: publisher,
		env: room.Env{
			Now:       clock.Now,
			NewID:     uuid.NewString,
			NewSecret: room.GenerateSecret,
		},
		rooms:         make(map[string]*actor),
		eventQueue:    make(chan events.RoomEvent, cfg.EventBufferSize),
		publisherDone: make(chan struct{}),
	}
	go h.publishEvents()
	return h
}

// Init creates the room if it does not exist yet. created reports whether
// this call created it; the returned state is the unredacted room state.
func (h *Hub) Init(ctx context.Context, roomID, hostName string, mode room.Mode) (*room.State, bool, error) {
	res, err := h.do(ctx, roomID, request{op: opInit, hostName: hostName, mode: mode})
	if err != nil {
		return nil, false, err
	}
	return res.state, res.created, res.err
}

// Connect registers obs with the room and sends it the current projection.
// For an unknown room the observer is notified, closed and
// room.ErrRoomNotFound is returned.
func (h *Hub) Connect(ctx context.Context, roomID string, obs Observer) error {
	res, err := h.do(ctx, roomID, request{op: opConnect, observer: obs})
	if err != nil {
		return err
	}
	return res.err
}

// Disconnect forgets obs and returns once the room has processed it. It
// never changes the room state.
func (h *Hub) Disconnect(roomID string, obs Observer) {
	a := h.lookup(roomID)
	if a == nil {
		return
	}
	req := request{op: opDisconnect, observer: obs, reply: make(chan result, 1)}
	select {
	case a.inbox <- req:
	case <-a.done:
		return
	}
	select {
	case <-req.reply:
	case <-a.done:
	}
}

// Dispatch decodes payload as an action from obs and applies it. It returns
// once every observer has been sent the resulting projection. A rejected
// action is not an error; a malformed payload is.
func (h *Hub) Dispatch(ctx context.Context, roomID string, obs Observer, payload []byte) error {
	res, err := h.do(ctx, roomID, request{op: opAction, observer: obs, payload: payload})
	if err != nil {
		return err
	}
	return res.err
}

// Snapshot returns a copy of the unredacted room state.
func (h *Hub) Snapshot(ctx context.Context, roomID string) (*room.State, error) {
	res, err := h.do(ctx, roomID, request{op: opSnapshot})
	if err != nil {
		return nil, err
	}
	return res.state, res.err
}

// ActiveRooms returns the number of rooms loaded in memory.
func (h *Hub) ActiveRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Shutdown disconnects every observer and stops all actors. Room state stays
// in the store.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	actors := make([]*actor, 0, len(h.rooms))
	for _, a := range h.rooms {
		actors = append(actors, a)
	}
	h.mu.Unlock()

	for _, a := range actors {
		select {
		case a.inbox <- request{op: opShutdown}:
		case <-a.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	stopped := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Stopped actors publish nothing more; flush what is queued.
	h.closeEvents.Do(func() { close(h.eventQueue) })
	select {
	case <-h.publisherDone:
		log.Info().Int("rooms", len(actors)).Msg("coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue hands e to the publisher goroutine without blocking.
func (h *Hub) enqueue(e events.RoomEvent) {
	select {
	case h.eventQueue <- e:
	default:
		events.PublishedEvents.WithLabelValues(string(e.Action), "dropped").Inc()
		log.Warn().
			Str("room_id", e.RoomID).
			Str("kind", string(e.Action)).
			Msg("event buffer full, dropping room event")
	}
}

func (h *Hub) publishEvents() {
	defer close(h.publisherDone)

	for e := range h.eventQueue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := h.publisher.Publish(ctx, e); err != nil {
			log.Warn().
				Err(err).
				Str("room_id", e.RoomID).
				Str("kind", string(e.Action)).
				Msg("failed to publish room event")
		}
		cancel()
	}
}

func (h *Hub) do(ctx context.Context, roomID string, req request) (result, error) {
	req.reply = make(chan result, 1)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		a := h.actorFor(roomID)
		if a == nil {
			return result{}, ErrHubClosed
		}

		select {
		case a.inbox <- req:
		case <-a.done:
			continue
		case <-ctx.Done():
			return result{}, ctx.Err()
		}

		select {
		case res := <-req.reply:
			return res, nil
		case <-a.done:
			// The actor replies before it stops, so a reply that is not
			// there now will never come.
			select {
			case res := <-req.reply:
				return res, nil
			default:
			}
		case <-ctx.Done():
			return result{}, ctx.Err()
		}
	}
	return result{}, ErrHubClosed
}

func (h *Hub) lookup(roomID string) *actor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[roomID]
}

// actorFor returns the running actor of a room, starting one if needed.
func (h *Hub) actorFor(roomID string) *actor {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	if a, ok := h.rooms[roomID]; ok {
		return a
	}

	a := newActor(h, roomID)
	h.rooms[roomID] = a
	ActiveRooms.Inc()
	h.wg.Add(1)
	go a.run()
	return a
}

func (h *Hub) remove(a *actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[a.roomID] == a {
		delete(h.rooms, a.roomID)
		ActiveRooms.Dec()
	}
}
