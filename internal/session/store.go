package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/obslog"
	ratingpkg "github.com/chess-arena/server/internal/rating"
)

// Store owns every active game. Each room id is an independent unit of
// mutation; one mutex serializes access across handlers and timer callbacks.
type Store struct {
	mu    sync.Mutex
	games map[string]*Game
	clock func() time.Time
}

// NewStore builds an empty store. A nil clock means time.Now; tests inject a
// fake clock to drive the clocks deterministically.
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{games: make(map[string]*Game), clock: clock}
}

// Create registers a new session with both clocks seeded from the time
// control's base minutes, white to move, and empty logs.
func (s *Store) Create(white, black Side, timeControl string) *Game {
	base, _, err := ratingpkg.ParseTimeControl(timeControl)
	if err != nil || base <= 0 {
		base = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	g := &Game{
		RoomID:       fmt.Sprintf("game-%d-%s", now.UnixNano(), randSuffix(4)),
		White:        white,
		Black:        black,
		StartTime:    now,
		LastMoveTime: now,
		WhiteTime:    time.Duration(base) * time.Minute,
		BlackTime:    time.Duration(base) * time.Minute,
		Turn:         White,
		TimeControl:  timeControl,
	}
	s.games[g.RoomID] = g
	obslog.L().Info("session_create",
		zap.String("room_id", g.RoomID),
		zap.String("time_control", timeControl),
		zap.String("white_conn", white.ConnID),
		zap.String("black_conn", black.ConnID),
	)
	return g
}

// Snapshot returns a copy of the game, safe to read without the lock.
func (s *Store) Snapshot(roomID string) (Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return Game{}, false
	}
	return snapshotLocked(g), true
}

func snapshotLocked(g *Game) Game {
	cp := *g
	cp.Moves = append([]string(nil), g.Moves...)
	cp.Chat = append([]ChatEntry(nil), g.Chat...)
	return cp
}

// ApplyMove validates turn ownership, appends the move, charges the mover's
// clock (floored at zero, then credited with the increment), flips the turn
// and clears a draw offer made by the other side. The mover's own
// outstanding offer survives their move.
func (s *Store) ApplyMove(roomID, moverConn, notation string) (MoveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return MoveOutcome{}, ErrNotFound
	}
	mover, ok := g.SideOf(moverConn)
	if !ok || mover != g.Turn {
		return MoveOutcome{}, ErrNotYourTurn
	}

	now := s.clock()
	elapsed := now.Sub(g.LastMoveTime)
	_, inc, _ := ratingpkg.ParseTimeControl(g.TimeControl)
	increment := time.Duration(inc) * time.Second

	out := MoveOutcome{Mover: mover}
	remaining := remainingOf(g, mover) - elapsed
	if remaining <= 0 {
		// The flag fell before this move; the caller finalizes on timeout.
		setRemaining(g, mover, 0)
		out.Flagged = true
		out.WhiteTime, out.BlackTime = g.WhiteTime, g.BlackTime
		obslog.L().Info("session_flag_fall",
			zap.String("room_id", roomID),
			zap.String("side", string(mover)),
		)
		return out, nil
	}
	setRemaining(g, mover, remaining+increment)

	g.Moves = append(g.Moves, notation)
	g.LastMoveTime = now
	g.Turn = mover.Opposite()

	if g.DrawOfferedBy != "" && g.DrawOfferedBy != moverConn {
		g.DrawOfferedBy = ""
		out.DrawOfferCleared = true
	}

	out.WhiteTime, out.BlackTime = g.WhiteTime, g.BlackTime
	return out, nil
}

func remainingOf(g *Game, c Color) time.Duration {
	if c == White {
		return g.WhiteTime
	}
	return g.BlackTime
}

func setRemaining(g *Game, c Color, d time.Duration) {
	if c == White {
		g.WhiteTime = d
	} else {
		g.BlackTime = d
	}
}

// AppendChat records a chat line with a server timestamp.
func (s *Store) AppendChat(roomID, senderConn, message string) (ChatEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return ChatEntry{}, ErrNotFound
	}
	side, ok := g.SideOf(senderConn)
	if !ok {
		return ChatEntry{}, ErrNotFound
	}
	entry := ChatEntry{Sender: g.side(side).DisplayName, Message: message, At: s.clock()}
	g.Chat = append(g.Chat, entry)
	return entry, nil
}

// OfferDraw records the offer and returns the opponent's connection id.
func (s *Store) OfferDraw(roomID, offererConn string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return "", ErrNotFound
	}
	side, ok := g.SideOf(offererConn)
	if !ok {
		return "", ErrNotFound
	}
	g.DrawOfferedBy = offererConn
	return g.side(side.Opposite()).ConnID, nil
}

// AcceptDraw reports whether a valid offer from the other side was
// outstanding; anything else is a no-op.
func (s *Store) AcceptDraw(roomID, acceptorConn string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return false, ErrNotFound
	}
	if _, ok := g.SideOf(acceptorConn); !ok {
		return false, ErrNotFound
	}
	if g.DrawOfferedBy == "" || g.DrawOfferedBy == acceptorConn {
		return false, nil
	}
	g.DrawOfferedBy = ""
	return true, nil
}

// DeclineDraw clears the offer and returns the offerer's connection id.
func (s *Store) DeclineDraw(roomID, declinerConn string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return "", false
	}
	if g.DrawOfferedBy == "" || g.DrawOfferedBy == declinerConn {
		return "", false
	}
	offerer := g.DrawOfferedBy
	g.DrawOfferedBy = ""
	return offerer, true
}

// Rejoin resolves which side owned oldConn, rebinds it to newConn and returns
// the restored state. The accrued clock for the side to move is computed from
// wall time without mutating the stored value.
func (s *Store) Rejoin(roomID, oldConn, newConn string) (RejoinState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return RejoinState{}, ErrNotFound
	}
	color, ok := g.SideOf(oldConn)
	if !ok {
		return RejoinState{}, ErrInvalidRejoin
	}
	g.side(color).ConnID = newConn
	// an outstanding offer from the rebound side follows the new connection
	if g.DrawOfferedBy == oldConn {
		g.DrawOfferedBy = newConn
	}

	whiteShown, blackShown := g.WhiteTime, g.BlackTime
	elapsed := s.clock().Sub(g.LastMoveTime)
	if g.Turn == White {
		whiteShown = max(0, whiteShown-elapsed)
	} else {
		blackShown = max(0, blackShown-elapsed)
	}

	obslog.L().Info("session_rejoin",
		zap.String("room_id", roomID),
		zap.String("side", string(color)),
		zap.String("new_conn", newConn),
	)
	return RejoinState{
		Color:       color,
		Moves:       append([]string(nil), g.Moves...),
		Chat:        append([]ChatEntry(nil), g.Chat...),
		WhiteTime:   whiteShown,
		BlackTime:   blackShown,
		Turn:        g.Turn,
		TimeControl: g.TimeControl,
		Opponent:    *g.side(color.Opposite()),
	}, nil
}

// SideOf resolves the color a connection plays in a room.
func (s *Store) SideOf(roomID, connID string) (Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return "", false
	}
	return g.SideOf(connID)
}

// FindByConn locates the active session a connection is playing in, if any.
func (s *Store) FindByConn(connID string) (string, Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roomID, g := range s.games {
		if c, ok := g.SideOf(connID); ok {
			return roomID, c, true
		}
	}
	return "", "", false
}

// BeginFinalize marks the session as finalizing. Exactly one caller wins;
// every other terminal trigger for the same room must give up. The marker is
// taken before any asynchronous gateway work so interleaved triggers cannot
// double-process (the scheduler may run them while a persistence call is in
// flight).
func (s *Store) BeginFinalize(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok || g.finalizing {
		return false
	}
	g.finalizing = true
	return true
}

// Remove deletes the session. Reports false when it was already gone, so
// removal happens exactly once no matter how many terminal triggers race.
func (s *Store) Remove(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[roomID]; !ok {
		return false
	}
	delete(s.games, roomID)
	return true
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

func randSuffix(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano()%1_000_000)
	}
	return hex.EncodeToString(b)
}
