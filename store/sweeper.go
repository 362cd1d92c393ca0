package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sweep deletes every room whose member set has been empty for at least the
// grace period. Task lists of swept rooms are discarded with them. It
// returns the number of rooms removed.
func (s *RoomStore) Sweep(grace time.Duration) int {
	cutoff := time.Now().Add(-grace)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.rooms {
		r.mu.Lock()
		idle := len(r.members) == 0 && !r.emptyAt.IsZero() && r.emptyAt.Before(cutoff)
		r.mu.Unlock()
		if idle {
			delete(s.rooms, id)
			removed++
		}
	}
	return removed
}

// RunSweeper periodically reclaims idle rooms until the context is
// cancelled. A grace period of zero disables reclamation entirely, which
// preserves the original behavior of rooms living forever.
func (s *RoomStore) RunSweeper(ctx context.Context, interval, grace time.Duration, logger *log.Logger) {
	if grace <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(grace); n > 0 && logger != nil {
				logger.WithField("rooms", n).Debug("reclaimed idle rooms")
			}
		}
	}
}
