package arenadto

import "encoding/json"

// Event is the envelope for every frame exchanged over a connection.
// Data holds the type-specific payload and may be empty.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound event types.
const (
	EvtFindGame        = "find_game"
	EvtCreateChallenge = "create_challenge"
	EvtGetChallenges   = "get_challenges"
	EvtAcceptChallenge = "accept_challenge"
	EvtCancelChallenge = "cancel_challenge"
	EvtMakeMove        = "make_move"
	EvtSendChat        = "send_chat"
	EvtOfferDraw       = "offer_draw"
	EvtAcceptDraw      = "accept_draw"
	EvtDeclineDraw     = "decline_draw"
	EvtGameOver        = "game_over"
	EvtResign          = "resign"
	EvtRejoinGame      = "rejoin_game"
)

// Outbound event types.
const (
	EvtConnected            = "connected"
	EvtChallengeListUpdated = "challenge_list_updated"
	EvtChallengeCreated     = "challenge_created"
	EvtChallengeCancelled   = "challenge_cancelled"
	EvtWaitingForOpponent   = "waiting_for_opponent"
	EvtGameStart            = "game_start"
	EvtOpponentMove         = "opponent_move"
	EvtReceiveChat          = "receive_chat"
	EvtDrawOffered          = "draw_offered"
	EvtDrawDeclined         = "draw_declined"
	EvtGameEnded            = "game_ended"
	EvtOpponentDisconnected = "opponent_disconnected"
	EvtOpponentReconnected  = "opponent_reconnected"
	EvtGameRejoined         = "game_rejoined"
	EvtRejoinError          = "rejoin_error"
	EvtError                = "error"
)

// NewEvent marshals payload into an Event envelope. A nil payload yields an
// event with an empty Data field.
func NewEvent(evtType string, payload any) (Event, error) {
	ev := Event{Type: evtType}
	if payload == nil {
		return ev, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	ev.Data = raw
	return ev, nil
}

// MustEvent is NewEvent for payloads that cannot fail to marshal (plain
// structs assembled by the engine). It panics on marshal errors.
func MustEvent(evtType string, payload any) Event {
	ev, err := NewEvent(evtType, payload)
	if err != nil {
		panic(err)
	}
	return ev
}
