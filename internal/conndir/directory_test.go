package conndir

import (
	"testing"

	"github.com/chess-arena/server/pkg/arenadto"
)

type recSender struct {
	events []arenadto.Event
	full   bool
}

func (r *recSender) Send(ev arenadto.Event) bool {
	if r.full {
		return false
	}
	r.events = append(r.events, ev)
	return true
}

func TestSendToUnknownConn(t *testing.T) {
	d := New()
	if d.SendTo("ghost", arenadto.Event{Type: "x"}) {
		t.Fatalf("send to unknown conn succeeded")
	}
}

func TestBroadcastRoomExcludes(t *testing.T) {
	d := New()
	a, b, c := &recSender{}, &recSender{}, &recSender{}
	d.Register("a", a)
	d.Register("b", b)
	d.Register("c", c)
	d.JoinRoom("room1", "a")
	d.JoinRoom("room1", "b")

	d.BroadcastRoom("room1", arenadto.Event{Type: "ping"}, "a")
	if len(a.events) != 0 {
		t.Fatalf("excluded conn received %d events", len(a.events))
	}
	if len(b.events) != 1 {
		t.Fatalf("member received %d events, want 1", len(b.events))
	}
	if len(c.events) != 0 {
		t.Fatalf("non-member received %d events", len(c.events))
	}
}

func TestUnregisterLeavesRooms(t *testing.T) {
	d := New()
	a, b := &recSender{}, &recSender{}
	d.Register("a", a)
	d.Register("b", b)
	d.JoinRoom("room1", "a")
	d.JoinRoom("room1", "b")

	d.Unregister("a")
	if d.Resolve("a") {
		t.Fatalf("unregistered conn still resolves")
	}
	d.BroadcastRoom("room1", arenadto.Event{Type: "ping"})
	if len(a.events) != 0 || len(b.events) != 1 {
		t.Fatalf("events after unregister: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestRebindTransfersMemberships(t *testing.T) {
	d := New()
	oldS, newS := &recSender{}, &recSender{}
	d.Register("old", oldS)
	d.JoinRoom("room1", "old")

	d.Register("new", newS)
	d.Rebind("old", "new")

	if d.Resolve("old") {
		t.Fatalf("old conn still resolves after rebind")
	}
	d.BroadcastRoom("room1", arenadto.Event{Type: "ping"})
	if len(newS.events) != 1 {
		t.Fatalf("rebound conn got %d events, want 1", len(newS.events))
	}
	if len(oldS.events) != 0 {
		t.Fatalf("old sender still receiving")
	}
}

func TestSendToSaturatedConn(t *testing.T) {
	d := New()
	d.Register("a", &recSender{full: true})
	if d.SendTo("a", arenadto.Event{Type: "x"}) {
		t.Fatalf("saturated send reported success")
	}
}
