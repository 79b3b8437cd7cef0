package challenge

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Registry holds all open challenges in insertion order so matching stays
// strictly FIFO. Matchmaking is by time control only; rating travels on the
// challenge for display and Elo seeding, never for proximity filtering.
type Registry struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*Challenge
	rng   *rand.Rand
	seq   uint64
	clock func() time.Time
}

// NewRegistry builds a registry around the given randomness source, injected
// so side assignment is reproducible under test. A nil rng gets a
// time-seeded source.
func NewRegistry(rng *rand.Rand) *Registry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Registry{
		byID:  make(map[string]*Challenge),
		rng:   rng,
		clock: time.Now,
	}
}

// SetClock overrides the time source for tests.
func (r *Registry) SetClock(clock func() time.Time) {
	r.mu.Lock()
	r.clock = clock
	r.mu.Unlock()
}

// Create registers a new open challenge. It always succeeds.
func (r *Registry) Create(owner, timeControl, displayName string, ratingVal int, avatarRef string, quickPlay bool) Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c := &Challenge{
		ID:          fmt.Sprintf("challenge-%d-%d", r.clock().UnixNano(), r.seq),
		Owner:       owner,
		DisplayName: displayName,
		Rating:      ratingVal,
		AvatarRef:   avatarRef,
		TimeControl: timeControl,
		CreatedAt:   r.clock(),
		QuickPlay:   quickPlay,
	}
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)
	return *c
}

// FindMatch removes and returns the first open challenge with an equal time
// control and a different owner. FIFO, first found; a requester is never
// paired against their own challenge even if they have several queued.
func (r *Registry) FindMatch(timeControl, requester string) (Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range r.order {
		c := r.byID[id]
		if c == nil || c.TimeControl != timeControl || c.Owner == requester {
			continue
		}
		delete(r.byID, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
		return *c, true
	}
	return Challenge{}, false
}

// Take removes and returns the challenge by id, for explicit accepts.
func (r *Registry) Take(id string) (Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Challenge{}, false
	}
	delete(r.byID, id)
	r.removeFromOrder(id)
	return *c, true
}

// Accept consumes the challenge for the acceptor. ownerAlive answers whether
// the owner's connection still resolves; a dead owner drops the challenge
// and surfaces ErrOwnerGone. Accepting your own challenge reports
// ErrNotFound and leaves the challenge in place.
func (r *Registry) Accept(id, acceptor string, ownerAlive func(string) bool) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	if c.Owner == acceptor {
		return Challenge{}, ErrNotFound
	}
	delete(r.byID, id)
	r.removeFromOrder(id)
	if ownerAlive != nil && !ownerAlive(c.Owner) {
		return Challenge{}, ErrOwnerGone
	}
	return *c, nil
}

// Cancel removes the challenge only when requester owns it. Anything else is
// a silent no-op, not an error.
func (r *Registry) Cancel(id, requester string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.Owner != requester {
		return false
	}
	delete(r.byID, id)
	r.removeFromOrder(id)
	return true
}

// DropByOwner removes every challenge owned by the connection and reports
// how many were dropped. Used by the disconnect sweep.
func (r *Registry) DropByOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	kept := r.order[:0]
	for _, id := range r.order {
		c := r.byID[id]
		if c != nil && c.Owner == owner {
			delete(r.byID, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return n
}

// List returns a snapshot of all open challenges in insertion order.
func (r *Registry) List() []Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Challenge, 0, len(r.order))
	for _, id := range r.order {
		if c := r.byID[id]; c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Flip is the unbiased coin used for side assignment on a matched pairing.
func (r *Registry) Flip() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(2) == 0
}

func (r *Registry) removeFromOrder(id string) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
