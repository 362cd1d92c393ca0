// Package store owns the in-memory state of every room: its task list and
// the set of connection ids currently joined. It is the single source of
// truth for the sync engine; all mutations are atomic per room.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MickeyBro19/Real-Time-Collaborative-Task-Board/domain"
)

// RoomStore holds all rooms keyed by their externally supplied identifier.
// Rooms are created lazily on first join and are only removed by the
// reclamation sweeper, if enabled.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu      sync.Mutex
	tasks   []domain.Task
	members map[string]struct{}
	// emptyAt is the time the member set last became empty. Zero while the
	// room is occupied; used by the sweeper to apply the grace period.
	emptyAt time.Time
}

// New creates an empty RoomStore.
func New() *RoomStore {
	return &RoomStore{rooms: make(map[string]*room)}
}

// EnsureRoom creates an empty room for the given id if it does not exist.
// It is idempotent and never fails.
func (s *RoomStore) EnsureRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		s.rooms[roomID] = &room{
			members: make(map[string]struct{}),
			emptyAt: time.Now(),
		}
	}
}

func (s *RoomStore) room(roomID string) *room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

// Tasks returns a snapshot of the room's task list in canonical order.
// The second return value reports whether the room exists.
func (s *RoomStore) Tasks(roomID string) ([]domain.Task, bool) {
	r := s.room(roomID)
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot(r.tasks), true
}

// AddTask appends a task with a fresh unique id to the end of the room's
// task list and returns it. Unknown rooms are a silent skip: the returned
// bool is false and no state changes.
func (s *RoomStore) AddTask(roomID, title string) (domain.Task, bool) {
	r := s.room(roomID)
	if r == nil {
		return domain.Task{}, false
	}
	t := domain.Task{ID: uuid.NewString(), Title: title}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return t, true
}

// UpdateTask overwrites the title of the task with the given id in place.
// Unknown room or task is a no-op and returns false.
func (s *RoomStore) UpdateTask(roomID, taskID, title string) bool {
	r := s.room(roomID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			r.tasks[i].Title = title
			return true
		}
	}
	return false
}

// DeleteTask removes the task with the given id, preserving the relative
// order of the remaining tasks, and returns the resulting list. Unknown
// rooms are a no-op with a false second return.
func (s *RoomStore) DeleteTask(roomID, taskID string) ([]domain.Task, bool) {
	r := s.room(roomID)
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tasks[:0]
	for _, t := range r.tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	r.tasks = kept
	return snapshot(r.tasks), true
}

// AddMember records the connection id as a member of the room. Unknown
// rooms are a silent skip.
func (s *RoomStore) AddMember(roomID, connID string) {
	r := s.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[connID] = struct{}{}
	r.emptyAt = time.Time{}
}

// RemoveMember drops the connection id from the room's member set. It is
// tolerant of the id or the room not being present.
func (s *RoomStore) RemoveMember(roomID, connID string) {
	r := s.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, connID)
	if len(r.members) == 0 {
		r.emptyAt = time.Now()
	}
}

// Members returns the connection ids currently joined to the room.
func (s *RoomStore) Members(roomID string) []string {
	r := s.room(roomID)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

func snapshot(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out
}
