// Package engine wires the matchmaking registry, session store, reconnection
// timers and persistence gateways behind a single event dispatcher. The
// transport layer hands every inbound frame to Dispatch and reports closed
// connections to HandleDisconnect; everything else happens here.
package engine

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/archive"
	"github.com/chess-arena/server/internal/challenge"
	"github.com/chess-arena/server/internal/conndir"
	"github.com/chess-arena/server/internal/config"
	"github.com/chess-arena/server/internal/msgcat"
	"github.com/chess-arena/server/internal/notify"
	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/internal/profile"
	"github.com/chess-arena/server/internal/reconnect"
	"github.com/chess-arena/server/internal/session"
	"github.com/chess-arena/server/pkg/arenadto"
)

type Engine struct {
	cfg        *config.AppConfig
	dir        *conndir.Directory
	challenges *challenge.Registry
	sessions   *session.Store
	timers     *reconnect.Supervisor
	profiles   *profile.Store
	archive    *archive.Repository
	notifier   *notify.Announcer
	cat        *msgcat.Catalog
	grace      time.Duration
}

// Deps carries the engine's collaborators. Archive and Notifier may be nil;
// those surfaces then degrade to no-ops. Profiles may be nil in tests, which
// turns every player into a guest.
type Deps struct {
	Cfg        *config.AppConfig
	Dir        *conndir.Directory
	Challenges *challenge.Registry
	Sessions   *session.Store
	Timers     *reconnect.Supervisor
	Profiles   *profile.Store
	Archive    *archive.Repository
	Notifier   *notify.Announcer
	Catalog    *msgcat.Catalog
}

func New(d Deps) *Engine {
	grace := 30 * time.Second
	if d.Cfg != nil && d.Cfg.ReconnectWindow > 0 {
		grace = d.Cfg.ReconnectWindow
	}
	return &Engine{
		cfg:        d.Cfg,
		dir:        d.Dir,
		challenges: d.Challenges,
		sessions:   d.Sessions,
		timers:     d.Timers,
		profiles:   d.Profiles,
		archive:    d.Archive,
		notifier:   d.Notifier,
		cat:        d.Catalog,
		grace:      grace,
	}
}

// Dispatch routes one inbound event from the given connection.
func (e *Engine) Dispatch(connID string, ev arenadto.Event) {
	switch ev.Type {
	case arenadto.EvtFindGame:
		var req arenadto.FindGameRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleFindGame(connID, req)
	case arenadto.EvtCreateChallenge:
		var req arenadto.CreateChallengeRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleCreateChallenge(connID, req)
	case arenadto.EvtGetChallenges:
		e.sendChallengeList(connID)
	case arenadto.EvtAcceptChallenge:
		var req arenadto.AcceptChallengeRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleAcceptChallenge(connID, req)
	case arenadto.EvtCancelChallenge:
		var req arenadto.CancelChallengeRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleCancelChallenge(connID, req)
	case arenadto.EvtMakeMove:
		var req arenadto.MakeMoveRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleMakeMove(connID, req)
	case arenadto.EvtSendChat:
		var req arenadto.SendChatRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleSendChat(connID, req)
	case arenadto.EvtOfferDraw:
		var req arenadto.RoomRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleOfferDraw(connID, req.RoomID)
	case arenadto.EvtAcceptDraw:
		var req arenadto.RoomRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleAcceptDraw(connID, req.RoomID)
	case arenadto.EvtDeclineDraw:
		var req arenadto.RoomRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleDeclineDraw(connID, req.RoomID)
	case arenadto.EvtResign:
		var req arenadto.RoomRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleResign(connID, req.RoomID)
	case arenadto.EvtGameOver:
		var req arenadto.GameOverRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleGameOver(connID, req)
	case arenadto.EvtRejoinGame:
		var req arenadto.RejoinGameRequest
		if !e.decode(connID, ev.Data, &req) {
			return
		}
		e.handleRejoin(connID, req)
	default:
		obslog.L().Warn("dispatch_unknown_event",
			zap.String("conn_id", connID),
			zap.String("event", ev.Type),
		)
		e.sendError(connID, e.cat.MustRender("request.unknown", nil))
	}
}

func (e *Engine) decode(connID string, raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		e.sendError(connID, e.cat.MustRender("request.malformed", nil))
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		obslog.L().Warn("dispatch_malformed_payload",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
		e.sendError(connID, e.cat.MustRender("request.malformed", nil))
		return false
	}
	return true
}

func (e *Engine) sendError(connID, message string) {
	e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtError, arenadto.ErrorPayload{Message: message}))
}
