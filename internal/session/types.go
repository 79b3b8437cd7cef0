package session

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("game not found")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrInvalidRejoin = errors.New("invalid rejoin credentials")
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opposite returns the other side.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Side binds a seat to a connection. Only the opaque connection id is stored;
// the transport handle lives in the connection directory.
type Side struct {
	ConnID      string
	DisplayName string
	Rating      int
	AvatarRef   string
}

// ChatEntry is one line of in-game chat with a server-side timestamp.
type ChatEntry struct {
	Sender  string
	Message string
	At      time.Time
}

// Game is the authoritative in-memory record of one active contest.
// It exists in the store from creation until exactly one terminal event
// finalizes it.
type Game struct {
	RoomID       string
	White        Side
	Black        Side
	Moves        []string
	Chat         []ChatEntry
	StartTime    time.Time
	LastMoveTime time.Time
	WhiteTime    time.Duration
	BlackTime    time.Duration
	Turn         Color
	TimeControl  string
	// DrawOfferedBy holds the offerer's connection id, empty when none.
	DrawOfferedBy string

	finalizing bool
}

// SideOf resolves which color the connection plays, if any.
func (g *Game) SideOf(connID string) (Color, bool) {
	switch connID {
	case g.White.ConnID:
		return White, true
	case g.Black.ConnID:
		return Black, true
	default:
		return "", false
	}
}

func (g *Game) side(c Color) *Side {
	if c == White {
		return &g.White
	}
	return &g.Black
}

// MoveOutcome reports the side effects of one applied move.
type MoveOutcome struct {
	Mover Color
	// Flagged is set when the mover's clock ran out before the move landed.
	Flagged bool
	// DrawOfferCleared is set when the move implicitly declined an
	// outstanding offer from the other side.
	DrawOfferCleared bool
	WhiteTime        time.Duration
	BlackTime        time.Duration
}

// RejoinState is everything a returning connection needs to resume play.
// Clock values are accrued for the side to move without mutating the stored
// ones.
type RejoinState struct {
	Color       Color
	Moves       []string
	Chat        []ChatEntry
	WhiteTime   time.Duration
	BlackTime   time.Duration
	Turn        Color
	TimeControl string
	Opponent    Side
}
