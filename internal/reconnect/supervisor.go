// Package reconnect schedules forfeiture of sessions whose owner dropped and
// did not return within the grace window.
package reconnect

import (
	"sync"
	"time"
)

type key struct {
	roomID string
	side   string
}

// Supervisor owns one cancellable delayed task per (room, side). A task that
// fires first unregisters itself; if cancellation already removed the entry,
// the callback never runs. That check closes the lost-cancellation race
// between a rejoin and an in-flight expiry.
type Supervisor struct {
	mu     sync.Mutex
	timers map[key]*time.Timer
}

func NewSupervisor() *Supervisor {
	return &Supervisor{timers: make(map[key]*time.Timer)}
}

// Schedule arms the forfeit task, replacing any previous one for the same
// seat. fn runs only if the entry is still registered at expiry.
func (s *Supervisor) Schedule(roomID, side string, delay time.Duration, fn func()) {
	k := key{roomID: roomID, side: side}
	s.mu.Lock()
	if old, ok := s.timers[k]; ok {
		old.Stop()
	}
	s.timers[k] = time.AfterFunc(delay, func() {
		if s.take(k) {
			fn()
		}
	})
	s.mu.Unlock()
}

// take removes the entry if present; the expiry handler only proceeds when it
// was the one to remove it.
func (s *Supervisor) take(k key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[k]; !ok {
		return false
	}
	delete(s.timers, k)
	return true
}

// Cancel disarms the seat's pending task. Reports whether one was pending.
func (s *Supervisor) Cancel(roomID, side string) bool {
	k := key{roomID: roomID, side: side}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[k]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, k)
	return true
}

// CancelRoom disarms both seats, used when a session finalizes.
func (s *Supervisor) CancelRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		if k.roomID == roomID {
			t.Stop()
			delete(s.timers, k)
		}
	}
}

// Pending reports whether a forfeit task is armed for the seat.
func (s *Supervisor) Pending(roomID, side string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key{roomID: roomID, side: side}]
	return ok
}
