package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/challenge"
	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/internal/rating"
	"github.com/chess-arena/server/internal/session"
	"github.com/chess-arena/server/pkg/arenadto"
)

func (e *Engine) handleFindGame(connID string, req arenadto.FindGameRequest) {
	tc := strings.TrimSpace(req.TimeControl)
	if tc == "" && e.cfg != nil {
		tc = e.cfg.DefaultTimeControl
	}

	for {
		matched, ok := e.challenges.FindMatch(tc, connID)
		if !ok {
			break
		}
		// a challenge whose owner silently vanished is discarded, not matched
		if !e.dir.Resolve(matched.Owner) {
			obslog.L().Warn("matchmaking_stale_challenge",
				zap.String("challenge_id", matched.ID),
				zap.String("owner", matched.Owner),
			)
			continue
		}
		e.startSession(matched, seeker{
			connID:      connID,
			displayName: req.DisplayName,
			ratingHint:  req.Rating,
		})
		e.broadcastChallengeList()
		return
	}

	c := e.challenges.Create(connID, tc, req.DisplayName, e.seedRating(req.DisplayName, req.Rating, tc), "", true)
	e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtWaitingForOpponent, arenadto.ChallengeCreatedPayload{
		ChallengeID: c.ID,
		Challenge:   challengeInfo(c),
	}))
	e.broadcastChallengeList()
	obslog.L().Info("matchmaking_queued",
		zap.String("conn_id", connID),
		zap.String("challenge_id", c.ID),
		zap.String("time_control", tc),
	)
}

func (e *Engine) handleCreateChallenge(connID string, req arenadto.CreateChallengeRequest) {
	tc := strings.TrimSpace(req.TimeControl)
	if tc == "" && e.cfg != nil {
		tc = e.cfg.DefaultTimeControl
	}
	c := e.challenges.Create(connID, tc, req.DisplayName, e.seedRating(req.DisplayName, req.Rating, tc), req.AvatarRef, false)
	e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtChallengeCreated, arenadto.ChallengeCreatedPayload{
		ChallengeID: c.ID,
		Challenge:   challengeInfo(c),
	}))
	e.broadcastChallengeList()
}

func (e *Engine) handleAcceptChallenge(connID string, req arenadto.AcceptChallengeRequest) {
	c, err := e.challenges.Accept(req.ChallengeID, connID, e.dir.Resolve)
	switch {
	case errors.Is(err, challenge.ErrOwnerGone):
		e.sendError(connID, e.cat.MustRender("challenge.owner_gone", nil))
		e.broadcastChallengeList()
		return
	case err != nil:
		e.sendError(connID, e.cat.MustRender("challenge.not_found", nil))
		return
	}
	e.startSession(c, seeker{
		connID:      connID,
		displayName: req.DisplayName,
		ratingHint:  req.Rating,
		avatarRef:   req.AvatarRef,
	})
	e.broadcastChallengeList()
}

func (e *Engine) handleCancelChallenge(connID string, req arenadto.CancelChallengeRequest) {
	if e.challenges.Cancel(req.ChallengeID, connID) {
		e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtChallengeCancelled, arenadto.ChallengeCancelledPayload{
			ChallengeID: req.ChallengeID,
		}))
		e.broadcastChallengeList()
	}
}

// seeker is the player who triggered the pairing, as opposed to the waiting
// challenge owner.
type seeker struct {
	connID      string
	displayName string
	ratingHint  int
	avatarRef   string
}

// startSession assigns colors by coin flip, creates the session and tells
// both players.
func (e *Engine) startSession(c challenge.Challenge, s seeker) {
	ownerSide := session.Side{
		ConnID:      c.Owner,
		DisplayName: c.DisplayName,
		Rating:      c.Rating,
		AvatarRef:   c.AvatarRef,
	}
	seekerSide := session.Side{
		ConnID:      s.connID,
		DisplayName: s.displayName,
		Rating:      e.seedRating(s.displayName, s.ratingHint, c.TimeControl),
		AvatarRef:   s.avatarRef,
	}

	white, black := ownerSide, seekerSide
	if e.challenges.Flip() {
		white, black = seekerSide, ownerSide
	}

	g := e.sessions.Create(white, black, c.TimeControl)
	e.dir.JoinRoom(g.RoomID, white.ConnID)
	e.dir.JoinRoom(g.RoomID, black.ConnID)

	e.dir.SendTo(white.ConnID, arenadto.MustEvent(arenadto.EvtGameStart, arenadto.GameStartPayload{
		RoomID:      g.RoomID,
		Color:       string(session.White),
		Opponent:    summaryOf(black),
		TimeControl: c.TimeControl,
	}))
	e.dir.SendTo(black.ConnID, arenadto.MustEvent(arenadto.EvtGameStart, arenadto.GameStartPayload{
		RoomID:      g.RoomID,
		Color:       string(session.Black),
		Opponent:    summaryOf(white),
		TimeControl: c.TimeControl,
	}))
}

// seedRating prefers the stored profile rating for named players and falls
// back to the client hint, then the default.
func (e *Engine) seedRating(displayName string, hint int, timeControl string) int {
	name := strings.TrimSpace(displayName)
	if name != "" && e.profiles != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ref, found, err := e.profiles.Resolve(ctx, name); err == nil && found {
			if p, ok, err := e.profiles.Lookup(ctx, ref, rating.CategoryOf(timeControl)); err == nil && ok {
				return p.Rating
			}
		} else if err != nil {
			obslog.L().Warn("profile_seed_lookup_failed", zap.String("display_name", name), zap.Error(err))
		}
	}
	if hint > 0 {
		return hint
	}
	return rating.DefaultRating
}

func (e *Engine) sendChallengeList(connID string) {
	e.dir.SendTo(connID, e.challengeListEvent())
}

func (e *Engine) broadcastChallengeList() {
	e.dir.BroadcastAll(e.challengeListEvent())
}

func (e *Engine) challengeListEvent() arenadto.Event {
	open := e.challenges.List()
	infos := make([]arenadto.ChallengeInfo, 0, len(open))
	for _, c := range open {
		infos = append(infos, challengeInfo(c))
	}
	return arenadto.MustEvent(arenadto.EvtChallengeListUpdated, infos)
}

func challengeInfo(c challenge.Challenge) arenadto.ChallengeInfo {
	return arenadto.ChallengeInfo{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		Rating:      c.Rating,
		AvatarRef:   c.AvatarRef,
		TimeControl: c.TimeControl,
		CreatedAt:   c.CreatedAt.UnixMilli(),
		QuickPlay:   c.QuickPlay,
	}
}

func summaryOf(s session.Side) arenadto.OpponentSummary {
	return arenadto.OpponentSummary{
		DisplayName: s.DisplayName,
		Rating:      s.Rating,
		AvatarRef:   s.AvatarRef,
	}
}
