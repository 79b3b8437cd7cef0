package reconnect

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCancelBeatsExpiry(t *testing.T) {
	s := NewSupervisor()
	var fired atomic.Int32
	s.Schedule("room1", "white", 20*time.Millisecond, func() { fired.Add(1) })

	if !s.Cancel("room1", "white") {
		t.Fatalf("cancel reported nothing pending")
	}
	time.Sleep(60 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("cancelled task fired %d times", n)
	}
	if s.Pending("room1", "white") {
		t.Fatalf("entry still pending after cancel")
	}
}

func TestExpiryFiresOnceAndUnregisters(t *testing.T) {
	s := NewSupervisor()
	done := make(chan struct{})
	s.Schedule("room1", "black", 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task never fired")
	}
	if s.Pending("room1", "black") {
		t.Fatalf("fired task still registered")
	}
	if s.Cancel("room1", "black") {
		t.Fatalf("cancel after expiry reported a pending task")
	}
}

func TestRescheduleReplacesTimer(t *testing.T) {
	s := NewSupervisor()
	var first, second atomic.Int32
	s.Schedule("room1", "white", time.Hour, func() { first.Add(1) })
	done := make(chan struct{})
	s.Schedule("room1", "white", 10*time.Millisecond, func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("replacement never fired")
	}
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("fired: first=%d second=%d", first.Load(), second.Load())
	}
}

func TestCancelRoomClearsBothSeats(t *testing.T) {
	s := NewSupervisor()
	s.Schedule("room1", "white", time.Hour, func() {})
	s.Schedule("room1", "black", time.Hour, func() {})
	s.Schedule("room2", "white", time.Hour, func() {})

	s.CancelRoom("room1")
	if s.Pending("room1", "white") || s.Pending("room1", "black") {
		t.Fatalf("room1 seats still pending")
	}
	if !s.Pending("room2", "white") {
		t.Fatalf("room2 seat was cleared too")
	}
	s.CancelRoom("room2")
}
