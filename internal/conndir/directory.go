package conndir

import (
	"sync"

	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/pkg/arenadto"
)

// Sender delivers one event to a single connection. Send must not block;
// it reports false when the connection can no longer accept events.
type Sender interface {
	Send(ev arenadto.Event) bool
}

// Directory maps connection ids to their senders and tracks room membership.
// Session state never holds a transport handle; it stores a connection id and
// resolves it here at send time, so a reconnect rebind is a pure data update.
type Directory struct {
	mu    sync.RWMutex
	conns map[string]Sender
	rooms map[string]map[string]struct{} // room -> conn ids
	joins map[string]map[string]struct{} // conn id -> rooms
}

func New() *Directory {
	return &Directory{
		conns: make(map[string]Sender),
		rooms: make(map[string]map[string]struct{}),
		joins: make(map[string]map[string]struct{}),
	}
}

func (d *Directory) Register(connID string, s Sender) {
	d.mu.Lock()
	d.conns[connID] = s
	d.mu.Unlock()
}

// Unregister drops the connection and all of its room memberships.
func (d *Directory) Unregister(connID string) {
	d.mu.Lock()
	delete(d.conns, connID)
	for room := range d.joins[connID] {
		d.leaveLocked(room, connID)
	}
	delete(d.joins, connID)
	d.mu.Unlock()
}

// Resolve reports whether the connection is still reachable.
func (d *Directory) Resolve(connID string) bool {
	d.mu.RLock()
	_, ok := d.conns[connID]
	d.mu.RUnlock()
	return ok
}

func (d *Directory) JoinRoom(room, connID string) {
	d.mu.Lock()
	if d.rooms[room] == nil {
		d.rooms[room] = make(map[string]struct{})
	}
	d.rooms[room][connID] = struct{}{}
	if d.joins[connID] == nil {
		d.joins[connID] = make(map[string]struct{})
	}
	d.joins[connID][room] = struct{}{}
	d.mu.Unlock()
}

func (d *Directory) LeaveRoom(room, connID string) {
	d.mu.Lock()
	d.leaveLocked(room, connID)
	if j := d.joins[connID]; j != nil {
		delete(j, room)
	}
	d.mu.Unlock()
}

func (d *Directory) leaveLocked(room, connID string) {
	if members := d.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(d.rooms, room)
		}
	}
}

// Rebind transfers the old connection's room memberships to the new one and
// drops the old entry. The new connection must already be registered.
func (d *Directory) Rebind(oldID, newID string) {
	d.mu.Lock()
	for room := range d.joins[oldID] {
		d.leaveLocked(room, oldID)
		if d.rooms[room] == nil {
			d.rooms[room] = make(map[string]struct{})
		}
		d.rooms[room][newID] = struct{}{}
		if d.joins[newID] == nil {
			d.joins[newID] = make(map[string]struct{})
		}
		d.joins[newID][room] = struct{}{}
	}
	delete(d.joins, oldID)
	delete(d.conns, oldID)
	d.mu.Unlock()
}

// SendTo delivers an event to one connection. Reports false when the
// connection is unknown or saturated.
func (d *Directory) SendTo(connID string, ev arenadto.Event) bool {
	d.mu.RLock()
	s, ok := d.conns[connID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	if !s.Send(ev) {
		obslog.L().Warn("conn_send_drop", zap.String("conn_id", connID), zap.String("event", ev.Type))
		return false
	}
	return true
}

// BroadcastRoom sends to every member of a room except the excluded ids.
func (d *Directory) BroadcastRoom(room string, ev arenadto.Event, exclude ...string) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	d.mu.RLock()
	targets := make([]string, 0, len(d.rooms[room]))
	for id := range d.rooms[room] {
		if _, ok := skip[id]; ok {
			continue
		}
		targets = append(targets, id)
	}
	d.mu.RUnlock()
	for _, id := range targets {
		d.SendTo(id, ev)
	}
}

// BroadcastAll sends to every registered connection.
func (d *Directory) BroadcastAll(ev arenadto.Event) {
	d.mu.RLock()
	targets := make([]string, 0, len(d.conns))
	for id := range d.conns {
		targets = append(targets, id)
	}
	d.mu.RUnlock()
	for _, id := range targets {
		d.SendTo(id, ev)
	}
}

// Count returns the number of live connections.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
