package api

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/MickeyBro19/Real-Time-Collaborative-Task-Board/domain"
	"github.com/MickeyBro19/Real-Time-Collaborative-Task-Board/store"
)

var errInvalidPayload = errors.New("invalid payload")

// Router validates inbound events, applies them to the room store, and asks
// the dispatcher to notify the affected room. Unknown room or task
// references are silent no-ops, matching the source behavior the engine
// preserves for stale clients.
type Router struct {
	store      *store.RoomStore
	hub        *Hub
	dispatcher *Dispatcher
	logger     *log.Logger
}

// NewRouter wires the router against its collaborators.
func NewRouter(st *store.RoomStore, hub *Hub, dispatcher *Dispatcher, logger *log.Logger) *Router {
	return &Router{store: st, hub: hub, dispatcher: dispatcher, logger: logger}
}

// HandleEvent processes one inbound event from the given connection.
func (r *Router) HandleEvent(connID string, env domain.Envelope) {
	metrics, ctx := newEventMetrics(context.Background(), r.logger)
	metrics.SetEvent(env.Event)
	metrics.SetConn(connID)

	var err error
	switch env.Event {
	case domain.EventRoomJoin:
		err = r.handleJoin(ctx, metrics, connID, env.Data)
	case domain.EventTaskAdd:
		err = r.handleTaskAdd(ctx, metrics, connID, env.Data)
	case domain.EventTaskUpdate:
		err = r.handleTaskUpdate(ctx, metrics, connID, env.Data)
	case domain.EventTaskDelete:
		err = r.handleTaskDelete(ctx, metrics, connID, env.Data)
	default:
		r.sendError(connID, "unknown event: "+env.Event)
		metrics.SetDropStage("unknown_event")
	}
	if errors.Is(err, errInvalidPayload) {
		r.sendError(connID, "invalid "+env.Event+" payload")
	}
	metrics.Log(err)
}

// HandleDisconnect removes the connection from every room it had joined and
// broadcasts the updated presence to each. Rooms the connection never
// joined are untouched.
func (r *Router) HandleDisconnect(connID string) {
	ctx := context.Background()
	for _, roomID := range r.hub.Unregister(connID) {
		r.store.RemoveMember(roomID, connID)
		r.broadcastPresence(ctx, roomID)
	}
	r.logger.WithField("conn", connID).Debug("connection closed")
}

// RejectMessage reports an undecodable frame back to its origin only.
func (r *Router) RejectMessage(connID, reason string) {
	r.sendError(connID, reason)
	r.logger.WithField("conn", connID).Debugf("rejected frame: %s", reason)
}

func (r *Router) handleJoin(ctx context.Context, metrics *eventMetrics, connID string, data []byte) error {
	var roomID string
	if err := decodeStrict(data, &roomID); err != nil || strings.TrimSpace(roomID) == "" {
		metrics.SetDropStage("decode")
		return errInvalidPayload
	}
	metrics.SetRoom(roomID)

	applyStart := time.Now()
	r.store.EnsureRoom(roomID)
	r.store.AddMember(roomID, connID)
	r.hub.TrackJoin(connID, roomID)
	tasks, _ := r.store.Tasks(roomID)
	metrics.ObserveApply(time.Since(applyStart))

	// Full task list goes to the joiner alone; everyone gets presence.
	state, err := encodeEvent(domain.EventRoomState, domain.RoomStatePayload{Tasks: tasks})
	if err != nil {
		metrics.SetDropStage("encode")
		return err
	}
	r.hub.Send(connID, state)

	broadcastStart := time.Now()
	r.broadcastPresence(ctx, roomID)
	metrics.ObserveBroadcast(time.Since(broadcastStart))
	return nil
}

func (r *Router) handleTaskAdd(ctx context.Context, metrics *eventMetrics, connID string, data []byte) error {
	var p domain.TaskAddPayload
	if err := decodeStrict(data, &p); err != nil || p.RoomID == "" {
		metrics.SetDropStage("decode")
		return errInvalidPayload
	}
	metrics.SetRoom(p.RoomID)
	if strings.TrimSpace(p.Title) == "" {
		// Well-behaved clients never send blank titles; drop them instead
		// of creating unnameable tasks.
		metrics.SetDropStage("blank_title")
		return nil
	}

	applyStart := time.Now()
	_, ok := r.store.AddTask(p.RoomID, p.Title)
	metrics.ObserveApply(time.Since(applyStart))
	if !ok {
		metrics.SetDropStage("unknown_room")
		return nil
	}
	return r.broadcastTaskList(ctx, metrics, p.RoomID)
}

func (r *Router) handleTaskUpdate(ctx context.Context, metrics *eventMetrics, connID string, data []byte) error {
	var p domain.TaskUpdatePayload
	if err := decodeStrict(data, &p); err != nil || p.RoomID == "" || p.TaskID == "" {
		metrics.SetDropStage("decode")
		return errInvalidPayload
	}
	metrics.SetRoom(p.RoomID)

	applyStart := time.Now()
	r.store.UpdateTask(p.RoomID, p.TaskID, p.Title)
	metrics.ObserveApply(time.Since(applyStart))

	// The list is rebroadcast even when the task was not found, so clients
	// reconverge on whatever the server actually holds.
	return r.broadcastTaskList(ctx, metrics, p.RoomID)
}

func (r *Router) handleTaskDelete(ctx context.Context, metrics *eventMetrics, connID string, data []byte) error {
	var p domain.TaskDeletePayload
	if err := decodeStrict(data, &p); err != nil || p.RoomID == "" || p.TaskID == "" {
		metrics.SetDropStage("decode")
		return errInvalidPayload
	}
	metrics.SetRoom(p.RoomID)

	applyStart := time.Now()
	tasks, ok := r.store.DeleteTask(p.RoomID, p.TaskID)
	metrics.ObserveApply(time.Since(applyStart))
	if !ok {
		metrics.SetDropStage("unknown_room")
		return nil
	}

	payload, err := encodeEvent(domain.EventTaskList, tasks)
	if err != nil {
		metrics.SetDropStage("encode")
		return err
	}
	broadcastStart := time.Now()
	r.dispatcher.Broadcast(ctx, p.RoomID, payload)
	metrics.ObserveBroadcast(time.Since(broadcastStart))
	return nil
}

func (r *Router) broadcastTaskList(ctx context.Context, metrics *eventMetrics, roomID string) error {
	tasks, ok := r.store.Tasks(roomID)
	if !ok {
		metrics.SetDropStage("unknown_room")
		return nil
	}
	payload, err := encodeEvent(domain.EventTaskList, tasks)
	if err != nil {
		metrics.SetDropStage("encode")
		return err
	}
	broadcastStart := time.Now()
	r.dispatcher.Broadcast(ctx, roomID, payload)
	metrics.ObserveBroadcast(time.Since(broadcastStart))
	return nil
}

func (r *Router) broadcastPresence(ctx context.Context, roomID string) {
	payload, err := encodeEvent(domain.EventRoomPresence, domain.PresencePayload{Users: r.store.Members(roomID)})
	if err != nil {
		r.logger.WithField("room", roomID).Errorf("encode presence: %v", err)
		return
	}
	r.dispatcher.Broadcast(ctx, roomID, payload)
}

func (r *Router) sendError(connID, message string) {
	payload, err := encodeEvent(domain.EventRoomError, domain.ErrorPayload{Error: message})
	if err != nil {
		return
	}
	r.hub.Send(connID, payload)
}

func decodeStrict(raw []byte, v any) error {
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(domain.Envelope{Event: event, Data: raw})
}
