package api

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const busChannelPrefix = "taskboard:room:"

type busMessage struct {
	RoomID  string `json:"roomId"`
	Payload []byte `json:"payload"`
}

// Bus carries room broadcasts over redis pub/sub so several instances can
// serve the same rooms. Each instance delivers incoming messages to the
// members it hosts locally.
type Bus struct {
	rdb    *redis.Client
	logger *log.Logger
}

// NewBus verifies connectivity and returns a ready bus.
func NewBus(ctx context.Context, rdb *redis.Client, logger *log.Logger) (*Bus, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, logger: logger}, nil
}

// Publish sends a room payload to the room's channel.
func (b *Bus) Publish(ctx context.Context, roomID string, payload []byte) error {
	raw, err := sonic.Marshal(busMessage{RoomID: roomID, Payload: payload})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, busChannelPrefix+roomID, raw).Err()
}

// Subscribe listens on all room channels and invokes fn for every message
// until the context is cancelled. A closed pub/sub channel triggers a
// reconnect after a short pause.
func (b *Bus) Subscribe(ctx context.Context, fn func(roomID string, payload []byte)) {
	for {
		sub := b.rdb.PSubscribe(ctx, busChannelPrefix+"*")
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var bm busMessage
				if err := sonic.Unmarshal([]byte(msg.Payload), &bm); err != nil {
					b.logger.Errorf("bus: unable to parse message: %v", err)
					continue
				}
				if bm.RoomID != "" {
					fn(bm.RoomID, bm.Payload)
				}
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("bus channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

// Close shuts down the redis connection.
func (b *Bus) Close() {
	_ = b.rdb.Close()
}
