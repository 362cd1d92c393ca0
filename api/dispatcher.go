package api

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/MickeyBro19/Real-Time-Collaborative-Task-Board/store"
)

// Dispatcher fans a payload out to every connection currently joined to a
// room. Membership is read from the store at delivery time, so a broadcast
// always reflects the current member set. When a Bus is configured the
// payload travels through redis pub/sub and every instance delivers to its
// own local members; without one, delivery is direct.
type Dispatcher struct {
	store  *store.RoomStore
	hub    *Hub
	bus    *Bus
	logger *log.Logger
}

// NewDispatcher creates a dispatcher. bus may be nil for single-instance
// deployments.
func NewDispatcher(st *store.RoomStore, hub *Hub, bus *Bus, logger *log.Logger) *Dispatcher {
	return &Dispatcher{store: st, hub: hub, bus: bus, logger: logger}
}

// Broadcast delivers the payload to all members of the room. Delivery per
// connection is best effort; a full send buffer drops the payload for that
// connection only.
func (d *Dispatcher) Broadcast(ctx context.Context, roomID string, payload []byte) {
	if d.bus != nil {
		err := d.bus.Publish(ctx, roomID, payload)
		if err == nil {
			return
		}
		d.logger.WithField("room", roomID).Errorf("bus publish failed, delivering locally: %v", err)
	}
	d.deliver(roomID, payload)
}

func (d *Dispatcher) deliver(roomID string, payload []byte) {
	for _, connID := range d.store.Members(roomID) {
		if !d.hub.Send(connID, payload) {
			d.logger.WithFields(log.Fields{"room": roomID, "conn": connID}).Debug("dropped payload for slow or gone connection")
		}
	}
}

// Run consumes the bus and delivers incoming payloads to local room members
// until the context is cancelled. It is a no-op without a bus.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.bus == nil {
		return
	}
	d.bus.Subscribe(ctx, d.deliver)
}
