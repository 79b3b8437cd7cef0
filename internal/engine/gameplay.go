package engine

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/internal/session"
	"github.com/chess-arena/server/pkg/arenadto"
)

func (e *Engine) handleMakeMove(connID string, req arenadto.MakeMoveRequest) {
	out, err := e.sessions.ApplyMove(req.RoomID, connID, strings.TrimSpace(req.Move))
	switch {
	case errors.Is(err, session.ErrNotFound):
		e.sendError(connID, e.cat.MustRender("game.not_found", nil))
		return
	case errors.Is(err, session.ErrNotYourTurn):
		e.sendError(connID, e.cat.MustRender("game.not_your_turn", nil))
		return
	case err != nil:
		e.sendError(connID, e.cat.MustRender("game.not_found", nil))
		return
	}

	if out.Flagged {
		winner := out.Mover.Opposite()
		e.finalize(req.RoomID, string(winner), "timeout", "timeout")
		return
	}

	e.dir.BroadcastRoom(req.RoomID, arenadto.MustEvent(arenadto.EvtOpponentMove, arenadto.OpponentMovePayload{
		Move:           req.Move,
		BoardStateHint: req.BoardStateHint,
		From:           req.From,
		To:             req.To,
	}), connID)
}

func (e *Engine) handleSendChat(connID string, req arenadto.SendChatRequest) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return
	}
	entry, err := e.sessions.AppendChat(req.RoomID, connID, msg)
	if err != nil {
		e.sendError(connID, e.cat.MustRender("game.not_participant", nil))
		return
	}
	e.dir.BroadcastRoom(req.RoomID, arenadto.MustEvent(arenadto.EvtReceiveChat, arenadto.ReceiveChatPayload{
		Sender:    entry.Sender,
		Message:   entry.Message,
		Timestamp: entry.At.UnixMilli(),
	}))
}

func (e *Engine) handleOfferDraw(connID, roomID string) {
	opponent, err := e.sessions.OfferDraw(roomID, connID)
	if err != nil {
		e.sendError(connID, e.cat.MustRender("game.not_participant", nil))
		return
	}
	e.dir.SendTo(opponent, arenadto.MustEvent(arenadto.EvtDrawOffered, nil))
}

func (e *Engine) handleAcceptDraw(connID, roomID string) {
	ok, err := e.sessions.AcceptDraw(roomID, connID)
	if err != nil {
		e.sendError(connID, e.cat.MustRender("game.not_participant", nil))
		return
	}
	if !ok {
		// no outstanding offer from the other side; stale accept
		return
	}
	e.finalize(roomID, "draw", "mutual agreement", "agreement")
}

func (e *Engine) handleDeclineDraw(connID, roomID string) {
	if offerer, ok := e.sessions.DeclineDraw(roomID, connID); ok {
		e.dir.SendTo(offerer, arenadto.MustEvent(arenadto.EvtDrawDeclined, nil))
	}
}

func (e *Engine) handleResign(connID, roomID string) {
	color, ok := e.sessions.SideOf(roomID, connID)
	if !ok {
		e.sendError(connID, e.cat.MustRender("game.not_participant", nil))
		return
	}
	e.finalize(roomID, string(color.Opposite()), "resignation", "resignation")
}

// handleGameOver accepts board-terminal results the client detected
// (checkmate, stalemate). The session store never validates legality, so the
// participant check is the only gate.
func (e *Engine) handleGameOver(connID string, req arenadto.GameOverRequest) {
	if _, ok := e.sessions.SideOf(req.RoomID, connID); !ok {
		e.sendError(connID, e.cat.MustRender("game.not_participant", nil))
		return
	}
	result := strings.ToLower(strings.TrimSpace(req.Result))
	switch result {
	case "white", "black", "draw":
	default:
		e.sendError(connID, e.cat.MustRender("request.malformed", nil))
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "checkmate"
	}
	e.finalize(req.RoomID, result, reason, reason)
}

func (e *Engine) handleRejoin(connID string, req arenadto.RejoinGameRequest) {
	state, err := e.sessions.Rejoin(req.RoomID, req.OldConnectionID, connID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtRejoinError, arenadto.RejoinErrorPayload{
			Message: e.cat.MustRender("rejoin.not_found", nil),
		}))
		return
	case errors.Is(err, session.ErrInvalidRejoin):
		e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtRejoinError, arenadto.RejoinErrorPayload{
			Message: e.cat.MustRender("rejoin.invalid", nil),
		}))
		return
	case err != nil:
		e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtRejoinError, arenadto.RejoinErrorPayload{
			Message: e.cat.MustRender("rejoin.not_found", nil),
		}))
		return
	}

	cancelled := e.timers.Cancel(req.RoomID, string(state.Color))
	e.dir.Rebind(req.OldConnectionID, connID)
	e.dir.JoinRoom(req.RoomID, connID)

	chat := make([]arenadto.ReceiveChatPayload, 0, len(state.Chat))
	for _, c := range state.Chat {
		chat = append(chat, arenadto.ReceiveChatPayload{
			Sender:    c.Sender,
			Message:   c.Message,
			Timestamp: c.At.UnixMilli(),
		})
	}
	e.dir.SendTo(connID, arenadto.MustEvent(arenadto.EvtGameRejoined, arenadto.GameRejoinedPayload{
		RoomID:      req.RoomID,
		Moves:       state.Moves,
		ChatHistory: chat,
		WhiteTime:   state.WhiteTime.Seconds(),
		BlackTime:   state.BlackTime.Seconds(),
		Color:       string(state.Color),
		Opponent:    summaryOf(state.Opponent),
		CurrentTurn: string(state.Turn),
		TimeControl: state.TimeControl,
	}))

	e.dir.SendTo(state.Opponent.ConnID, arenadto.MustEvent(arenadto.EvtOpponentReconnected, arenadto.OpponentReconnectedPayload{
		Message: e.cat.MustRender("notice.opponent_reconnected", nil),
	}))

	obslog.L().Info("engine_rejoin",
		zap.String("room_id", req.RoomID),
		zap.String("conn_id", connID),
		zap.Bool("forfeit_cancelled", cancelled),
	)
}
