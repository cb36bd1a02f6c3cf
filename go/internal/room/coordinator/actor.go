package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/estimate/go/internal/room"
	"github.com/mcdev12/estimate/go/internal/room/events"
)

const (
	storeTimeout   = 5 * time.Second
	publishTimeout = 2 * time.Second
)

type op int

const (
	opInit op = iota
	opConnect
	opDisconnect
	opAction
	opSnapshot
	opAlarm
	opShutdown
)

type request struct {
	op       op
	hostName string
	mode     room.Mode
	observer Observer
	payload  []byte
	gen      uint64
	reply    chan result
}

type result struct {
	state   *room.State
	created bool
	err     error
}

type member struct {
	obs  Observer
	name string
}

// actor owns one room. Everything below is touched only by its goroutine.
type actor struct {
	hub    *Hub
	roomID string
	inbox  chan request
	done   chan struct{}

	state     *room.State
	observers map[string]*member
	timer     clockwork.Timer
	gen       uint64
}

func newActor(h *Hub, roomID string) *actor {
	return &actor{
		hub:       h,
		roomID:    roomID,
		inbox:     make(chan request, h.cfg.InboxSize),
		done:      make(chan struct{}),
		observers: make(map[string]*member),
	}
}

func (a *actor) run() {
	defer a.hub.wg.Done()

	if err := a.load(); err != nil {
		a.unavailable(<-a.inbox, err)
		a.stop()
		return
	}
	if a.state != nil {
		a.arm()
	}

	for req := range a.inbox {
		if stop := a.handle(req); stop {
			return
		}
	}
}

// load reads the room from the store. Only a definite ErrRoomNotFound
// leaves the actor without state; any other failure is returned so that an
// existing room is never mistaken for a new one.
func (a *actor) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	s, err := a.hub.store.Get(ctx, a.roomID)
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return nil
	case err != nil:
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to load room")
		return fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
	}
	a.state = s
	log.Debug().Str("room_id", a.roomID).Msg("room loaded")
	return nil
}

// unavailable answers the request that started an actor whose room could
// not be loaded. Observers are asked to come back later.
func (a *actor) unavailable(req request, err error) {
	switch req.op {
	case opConnect, opAction:
		_ = req.observer.Send(EncodeNotice(NoticeUnavailable))
		req.observer.Close(CloseTryAgainLater, NoticeUnavailable)
	}
	a.reply(req, result{err: err})
}

// handle processes one request and reports whether the actor has stopped.
func (a *actor) handle(req request) bool {
	switch req.op {
	case opInit:
		a.reply(req, a.init(req.hostName, req.mode))
	case opConnect:
		a.reply(req, result{err: a.connect(req.observer)})
	case opDisconnect:
		a.disconnect(req.observer)
		a.reply(req, result{})
	case opAction:
		a.reply(req, result{err: a.dispatch(req.observer, req.payload)})
	case opSnapshot:
		if a.state == nil {
			a.reply(req, result{err: room.ErrRoomNotFound})
		} else {
			a.reply(req, result{state: a.state.Clone()})
		}
	case opAlarm:
		if req.gen == a.gen {
			return a.alarm()
		}
	case opShutdown:
		a.closeAll(CloseGoingAway, NoticeShuttingDown)
		a.stop()
		return true
	}

	// A room that was never created has nothing to keep the actor alive.
	if a.state == nil && len(a.observers) == 0 {
		a.stop()
		return true
	}
	return false
}

func (a *actor) reply(req request, res result) {
	if req.reply != nil {
		req.reply <- res
	}
}

func (a *actor) init(hostName string, mode room.Mode) result {
	if a.state != nil {
		return result{state: a.state.Clone()}
	}

	name, ok := room.SanitizeName(hostName)
	if !ok {
		return result{err: fmt.Errorf("%w: host name", room.ErrInvalid)}
	}
	if mode == "" {
		mode = room.ModeOpen
	}
	if !room.ValidMode(mode) {
		return result{err: fmt.Errorf("%w: mode %q", room.ErrInvalid, mode)}
	}

	a.state = room.NewState(a.roomID, name, mode, a.hub.env)
	a.persist()
	a.arm()

	log.Info().
		Str("room_id", a.roomID).
		Str("host", name).
		Str("mode", string(mode)).
		Msg("room created")

	return result{state: a.state.Clone(), created: true}
}

func (a *actor) connect(obs Observer) error {
	if a.state == nil {
		a.reject(obs)
		return room.ErrRoomNotFound
	}

	if _, exists := a.observers[obs.ID()]; !exists {
		ConnectedObservers.Inc()
	}
	m := &member{obs: obs}
	a.observers[obs.ID()] = m
	a.arm()

	log.Debug().
		Str("room_id", a.roomID).
		Str("observer_id", obs.ID()).
		Int("observers", len(a.observers)).
		Msg("observer connected")

	a.send(m)
	return nil
}

func (a *actor) disconnect(obs Observer) {
	if _, ok := a.observers[obs.ID()]; !ok {
		return
	}
	delete(a.observers, obs.ID())
	ConnectedObservers.Dec()

	log.Debug().
		Str("room_id", a.roomID).
		Str("observer_id", obs.ID()).
		Int("observers", len(a.observers)).
		Msg("observer disconnected")

	if len(a.observers) == 0 && a.state != nil {
		a.arm()
	}
}

func (a *actor) dispatch(obs Observer, payload []byte) error {
	if a.state == nil {
		a.reject(obs)
		return room.ErrRoomNotFound
	}
	a.arm()

	action, err := room.DecodeAction(payload)
	if err != nil {
		ActionsProcessed.WithLabelValues("unknown", "malformed").Inc()
		if sendErr := obs.Send(EncodeNotice(NoticeInvalidAction)); sendErr != nil {
			a.drop(obs.ID())
		}
		return err
	}

	next, rejection := room.Apply(a.state, action, a.hub.env)
	a.state = next

	kind := string(action.Kind())
	if rejection != nil {
		ActionsProcessed.WithLabelValues(kind, "rejected").Inc()
		log.Debug().
			Err(rejection).
			Str("room_id", a.roomID).
			Str("kind", kind).
			Msg("action rejected")
	} else {
		ActionsProcessed.WithLabelValues(kind, "applied").Inc()
	}

	if join, ok := action.(*room.Join); ok {
		a.learnName(obs, join, rejection)
	}

	a.persist()
	a.broadcast()
	a.hub.enqueue(events.NewRoomEvent(a.state, action.Kind(), rejection))
	return nil
}

// learnName associates obs with the name it joined as, so that it sees its
// own vote. Claiming the host's name requires the host token, otherwise any
// client could read the host secret from its projection. Other names are not
// bound to anything: announcing an existing participant's name shows that
// participant's vote.
func (a *actor) learnName(obs Observer, join *room.Join, rejection error) {
	m, ok := a.observers[obs.ID()]
	if !ok {
		return
	}
	name, valid := room.SanitizeName(join.Name)
	if !valid {
		return
	}

	switch {
	case name == a.state.Host.Name:
		if !a.state.IsHost(join.HostToken) {
			return
		}
	case rejection != nil:
		// Reconnecting participants announce a name that is already taken.
		if _, isParticipant := a.state.Participants[name]; !isParticipant {
			return
		}
	}
	m.name = name
}

func (a *actor) broadcast() {
	for _, m := range a.observers {
		a.send(m)
	}
}

func (a *actor) send(m *member) {
	data, err := encodeState(room.Project(a.state, m.name))
	if err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to encode projection")
		return
	}
	BroadcastBytes.Observe(float64(len(data)))

	if err := m.obs.Send(data); err != nil {
		log.Warn().
			Err(err).
			Str("room_id", a.roomID).
			Str("observer_id", m.obs.ID()).
			Msg("dropping observer")
		a.drop(m.obs.ID())
	}
}

func (a *actor) drop(id string) {
	m, ok := a.observers[id]
	if !ok {
		return
	}
	delete(a.observers, id)
	ConnectedObservers.Dec()
	m.obs.Close(CloseTryAgainLater, NoticeSlowConsumer)
}

// reject tells an observer of an unknown room that there is nothing here.
func (a *actor) reject(obs Observer) {
	_ = obs.Send(EncodeNotice(NoticeRoomNotFound))
	obs.Close(CloseNormal, NoticeRoomNotFound)
}

func (a *actor) closeAll(code int, reason string) {
	for id, m := range a.observers {
		delete(a.observers, id)
		ConnectedObservers.Dec()
		m.obs.Close(code, reason)
	}
}

// persist writes the state through to the store. Persistence is best effort:
// on failure the in-memory state stays authoritative.
func (a *actor) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.hub.store.Put(ctx, a.state); err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to persist room")
	}
}

// arm (re)starts the inactivity alarm. Firings of earlier timers are
// recognized by their generation and ignored.
func (a *actor) arm() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = a.hub.clock.AfterFunc(a.hub.cfg.AlarmInterval, func() {
		select {
		case a.inbox <- request{op: opAlarm, gen: gen}:
		case <-a.done:
		}
	})
}

func (a *actor) alarm() bool {
	if a.state == nil {
		a.stop()
		return true
	}

	idle := a.hub.clock.Now().Sub(a.state.UpdatedAt)
	switch {
	case a.state.Status == room.StatusEnded && idle >= a.hub.cfg.EndedGrace:
		a.closeAll(CloseNormal, NoticeSessionEnded)
		a.destroy("ended")
		return true
	case len(a.observers) == 0 && idle >= a.hub.cfg.IdleRetention:
		a.destroy("idle")
		return true
	}

	a.arm()
	return false
}

func (a *actor) destroy(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.hub.store.Delete(ctx, a.roomID); err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to delete room")
	}
	RoomsDestroyed.WithLabelValues(reason).Inc()
	log.Info().Str("room_id", a.roomID).Str("reason", reason).Msg("room destroyed")

	a.state = nil
	a.stop()
}

func (a *actor) stop() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.hub.remove(a)
	close(a.done)
}
