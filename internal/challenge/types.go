package challenge

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means the challenge was already matched or cancelled.
	ErrNotFound = errors.New("challenge not found")
	// ErrOwnerGone means the challenge owner's connection no longer resolves.
	ErrOwnerGone = errors.New("challenger disconnected")
)

// Challenge is an open, unmatched pairing offer. It is owned solely by its
// creator until matched or cancelled.
type Challenge struct {
	ID          string
	Owner       string // connection id
	DisplayName string
	Rating      int
	AvatarRef   string
	TimeControl string
	CreatedAt   time.Time
	QuickPlay   bool
}
