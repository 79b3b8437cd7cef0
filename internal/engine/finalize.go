package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/archive"
	"github.com/chess-arena/server/internal/notify"
	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/internal/rating"
	"github.com/chess-arena/server/internal/session"
	"github.com/chess-arena/server/pkg/arenadto"
)

// HandleDisconnect runs the disconnect sweep for a closed connection: open
// challenges are withdrawn, an active game arms the forfeit timer and the
// opponent is told how long the grace window is.
func (e *Engine) HandleDisconnect(connID string) {
	if dropped := e.challenges.DropByOwner(connID); dropped > 0 {
		e.broadcastChallengeList()
	}

	roomID, color, inGame := e.sessions.FindByConn(connID)
	if inGame {
		g, ok := e.sessions.Snapshot(roomID)
		if ok {
			opponent := g.White.ConnID
			if color == session.White {
				opponent = g.Black.ConnID
			}
			e.dir.SendTo(opponent, arenadto.MustEvent(arenadto.EvtOpponentDisconnected, arenadto.OpponentDisconnectedPayload{
				Message: e.cat.MustRender("notice.opponent_disconnected", map[string]any{
					"Seconds": int(e.grace.Seconds()),
				}),
				Timeout: e.grace.Milliseconds(),
			}))
			e.scheduleForfeit(roomID, color)
		}
	}

	e.dir.Unregister(connID)
	obslog.L().Info("engine_disconnect",
		zap.String("conn_id", connID),
		zap.Bool("in_game", inGame),
	)
}

// scheduleForfeit arms the grace timer for the disconnected side. The expiry
// callback re-checks that the session still exists; a rejoin cancels the
// timer, and finalize's own marker absorbs any trigger that slips through.
func (e *Engine) scheduleForfeit(roomID string, disconnected session.Color) {
	e.timers.Schedule(roomID, string(disconnected), e.grace, func() {
		if _, ok := e.sessions.Snapshot(roomID); !ok {
			return
		}
		obslog.L().Info("engine_forfeit_expired",
			zap.String("room_id", roomID),
			zap.String("side", string(disconnected)),
		)
		e.finalize(roomID, string(disconnected.Opposite()), string(disconnected)+" disconnected", "disconnect")
	})
}

// finalize runs the terminal pipeline exactly once per session: rating
// computation, profile and archive persistence, external notification and
// the game_ended broadcast. result is "white", "black" or "draw"; reason is
// the human-readable termination text, reasonTag the stable key used for
// profile outcome breakdowns.
func (e *Engine) finalize(roomID, result, reason, reasonTag string) {
	if !e.sessions.BeginFinalize(roomID) {
		return
	}
	g, ok := e.sessions.Snapshot(roomID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cat := rating.CategoryOf(g.TimeControl)
	white := e.resolveParty(ctx, g.White, cat)
	black := e.resolveParty(ctx, g.Black, cat)

	changes := arenadto.RatingChanges{
		White: arenadto.RatingChange{Delta: 0, NewRating: white.ratingVal},
		Black: arenadto.RatingChange{Delta: 0, NewRating: black.ratingVal},
	}
	if white.degraded || black.degraded {
		// Rating persistence is unreachable; the game still ends, with
		// zero deltas, rather than hanging the session.
		obslog.L().Warn("finalize_rating_degraded",
			zap.String("room_id", roomID),
			zap.Bool("white_degraded", white.degraded),
			zap.Bool("black_degraded", black.degraded),
		)
	} else {
		gr := rating.ComputeGameRatings(rating.GameInput{
			WhiteRating:      white.ratingVal,
			BlackRating:      black.ratingVal,
			Result:           result,
			WhiteGamesPlayed: white.games,
			BlackGamesPlayed: black.games,
		})
		changes = arenadto.RatingChanges{
			White: arenadto.RatingChange{Delta: gr.WhiteDelta, NewRating: gr.WhiteNewRating},
			Black: arenadto.RatingChange{Delta: gr.BlackDelta, NewRating: gr.BlackNewRating},
		}
		e.persistProfile(ctx, white, cat, outcomeFor(result, session.White), gr.WhiteNewRating, reasonTag)
		e.persistProfile(ctx, black, cat, outcomeFor(result, session.Black), gr.BlackNewRating, reasonTag)
	}

	if e.archive != nil {
		rec := archive.Record{
			RoomID:      roomID,
			WhiteName:   g.White.DisplayName,
			WhiteRef:    white.ref,
			BlackName:   g.Black.DisplayName,
			BlackRef:    black.ref,
			Result:      result,
			Reason:      reason,
			Category:    string(cat),
			WhiteDelta:  changes.White.Delta,
			BlackDelta:  changes.Black.Delta,
			Moves:       g.Moves,
			TimeControl: g.TimeControl,
			StartedAt:   g.StartTime,
			EndedAt:     time.Now(),
		}
		if err := e.archive.SaveCompleted(ctx, rec); err != nil {
			obslog.L().Error("finalize_archive_failed",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
	}

	e.notifier.Announce(ctx, notify.ResultNotice{
		RoomID:      roomID,
		White:       g.White.DisplayName,
		Black:       g.Black.DisplayName,
		Result:      result,
		Reason:      reason,
		Category:    string(cat),
		TimeControl: g.TimeControl,
		WhiteDelta:  changes.White.Delta,
		BlackDelta:  changes.Black.Delta,
		EndedAt:     time.Now().UnixMilli(),
	})

	e.dir.BroadcastRoom(roomID, arenadto.MustEvent(arenadto.EvtGameEnded, arenadto.GameEndedPayload{
		Result:        result,
		Reason:        reason,
		RatingChanges: &changes,
	}))

	e.timers.CancelRoom(roomID)
	e.dir.LeaveRoom(roomID, g.White.ConnID)
	e.dir.LeaveRoom(roomID, g.Black.ConnID)
	e.sessions.Remove(roomID)

	obslog.L().Info("engine_finalize",
		zap.String("room_id", roomID),
		zap.String("result", result),
		zap.String("reason", reason),
		zap.String("category", string(cat)),
		zap.Int("white_delta", changes.White.Delta),
		zap.Int("black_delta", changes.Black.Delta),
	)
}

// party is one player's persistence identity at finalization time.
type party struct {
	ref       string // empty for guests
	ratingVal int
	games     int
	degraded  bool
}

// resolveParty resolves the stored profile for a named player, registering
// first-timers on the spot. Guests (no display name) never touch the store.
// A gateway error marks the party degraded, which forces zero deltas.
func (e *Engine) resolveParty(ctx context.Context, s session.Side, cat rating.Category) party {
	p := party{ratingVal: s.Rating}
	if p.ratingVal <= 0 {
		p.ratingVal = rating.DefaultRating
	}
	name := strings.TrimSpace(s.DisplayName)
	if name == "" || e.profiles == nil {
		return p
	}

	ref, err := e.profiles.Register(ctx, name)
	if err != nil {
		p.degraded = true
		return p
	}
	p.ref = ref

	stored, found, err := e.profiles.Lookup(ctx, ref, cat)
	if err != nil {
		p.degraded = true
		return p
	}
	if found {
		p.ratingVal = stored.Rating
		p.games = stored.GamesPlayed
	}
	return p
}

func (e *Engine) persistProfile(ctx context.Context, p party, cat rating.Category, outcome rating.Outcome, newRating int, reason string) {
	if p.ref == "" || e.profiles == nil {
		return
	}
	if _, err := e.profiles.ApplyResult(ctx, p.ref, cat, outcome, newRating, reason); err != nil {
		obslog.L().Error("finalize_profile_failed",
			zap.String("player_ref", p.ref),
			zap.Error(err),
		)
	}
}

func outcomeFor(result string, c session.Color) rating.Outcome {
	switch result {
	case string(c):
		return rating.Win
	case "draw":
		return rating.Draw
	default:
		return rating.Loss
	}
}
