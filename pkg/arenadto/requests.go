package arenadto

// FindGameRequest asks for quick-play pairing by time control.
type FindGameRequest struct {
	TimeControl string `json:"timeControl"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
}

// CreateChallengeRequest posts an open challenge without matching first.
type CreateChallengeRequest struct {
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef,omitempty"`
	TimeControl string `json:"timeControl"`
}

type AcceptChallengeRequest struct {
	ChallengeID string `json:"challengeId"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

type CancelChallengeRequest struct {
	ChallengeID string `json:"challengeId"`
}

// MakeMoveRequest carries a move already validated by the sending client.
// BoardStateHint is forwarded verbatim to the opponent.
type MakeMoveRequest struct {
	RoomID         string `json:"roomId"`
	Move           string `json:"move"`
	BoardStateHint string `json:"boardStateHint,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
}

type SendChatRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// RoomRequest covers offer_draw, accept_draw, decline_draw and resign.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type GameOverRequest struct {
	RoomID string `json:"roomId"`
	Result string `json:"result"`
	Reason string `json:"reason"`
}

type RejoinGameRequest struct {
	RoomID          string `json:"roomId"`
	OldConnectionID string `json:"oldConnectionId"`
}
