package arenadto

// ConnectedPayload announces the server-assigned connection id. Clients keep
// it to present as oldConnectionId on rejoin.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// ChallengeInfo is the public view of an open challenge.
type ChallengeInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef,omitempty"`
	TimeControl string `json:"timeControl"`
	CreatedAt   int64  `json:"createdAt"`
	QuickPlay   bool   `json:"isQuickPlay,omitempty"`
}

type ChallengeCreatedPayload struct {
	ChallengeID string        `json:"challengeId"`
	Challenge   ChallengeInfo `json:"challenge"`
}

type ChallengeCancelledPayload struct {
	ChallengeID string `json:"challengeId"`
}

// OpponentSummary is what each side learns about the other at game start.
type OpponentSummary struct {
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

type GameStartPayload struct {
	RoomID      string          `json:"roomId"`
	Color       string          `json:"color"`
	Opponent    OpponentSummary `json:"opponent"`
	TimeControl string          `json:"timeControl"`
}

type OpponentMovePayload struct {
	Move           string `json:"move"`
	BoardStateHint string `json:"boardStateHint,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
}

type ReceiveChatPayload struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// RatingChange reports one side's Elo movement at game end.
type RatingChange struct {
	Delta     int `json:"delta"`
	NewRating int `json:"newRating"`
}

type RatingChanges struct {
	White RatingChange `json:"white"`
	Black RatingChange `json:"black"`
}

type GameEndedPayload struct {
	Result        string         `json:"result"`
	Reason        string         `json:"reason"`
	RatingChanges *RatingChanges `json:"ratingChanges,omitempty"`
}

type OpponentDisconnectedPayload struct {
	Message string `json:"message"`
	Timeout int64  `json:"timeout"`
}

type OpponentReconnectedPayload struct {
	Message string `json:"message"`
}

// GameRejoinedPayload restores full session state after a reconnect.
// Clock values are seconds, accrued for the side to move.
type GameRejoinedPayload struct {
	RoomID      string               `json:"roomId"`
	Moves       []string             `json:"moves"`
	ChatHistory []ReceiveChatPayload `json:"chatHistory"`
	WhiteTime   float64              `json:"whiteTime"`
	BlackTime   float64              `json:"blackTime"`
	Color       string               `json:"color"`
	Opponent    OpponentSummary      `json:"opponent"`
	CurrentTurn string               `json:"currentTurn"`
	TimeControl string               `json:"timeControl"`
}

type RejoinErrorPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
