package main

// Messages coming from clients. One closed set of fields; which ones are
// meaningful depends on Type.
type ClientMessage struct {
	Type       string `json:"type"`                 // "registerUser", "createRoom", "joinRoom", "findMatch", "joinSpectator", "rejoinGame", "playerMove", "playAgainRequest", "chatMessage", "reaction"
	UserID     string `json:"userId,omitempty"`     // registerUser
	RoomID     string `json:"roomId,omitempty"`     // createRoom (optional), joinRoom, joinSpectator, rejoinGame, playerMove, playAgainRequest, chatMessage, reaction
	PlayerName string `json:"playerName,omitempty"` // createRoom, joinRoom, findMatch
	Variant    string `json:"variant,omitempty"`    // createRoom, findMatch: cosmetic board skin
	CellIndex  int    `json:"cellIndex"`            // playerMove: 0..8, row-major
	Sender     string `json:"sender,omitempty"`     // chatMessage: display name, not validated against the connection
	Message    string `json:"message,omitempty"`    // chatMessage
	Content    string `json:"content,omitempty"`    // reaction
}

// SimpleMessage is for notifications that carry no payload beyond optional
// text: "waitingForPlayer", "opponentDisconnected", "opponentReconnected",
// "opponentLeft", "rejoinFailed", "opponentWantsToPlayAgain", "error".
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// RoomCreatedMessage confirms room creation to the creator, who always
// holds X.
type RoomCreatedMessage struct {
	Type   string `json:"type"` // "roomCreated"
	RoomID string `json:"roomId"`
	Symbol symbol `json:"symbol"`
}

// GameStartMessage is sent to both players when a game begins, including
// replays in an existing room.
type GameStartMessage struct {
	Type         string `json:"type"` // "gameStart"
	Symbol       symbol `json:"symbol"`
	RoomID       string `json:"roomId"`
	MyTurn       bool   `json:"myTurn"`
	OpponentName string `json:"opponentName"`
	Variant      string `json:"variant,omitempty"`
}

// GameRejoinedMessage restores a reconnecting player's full view of the room.
type GameRejoinedMessage struct {
	Type         string `json:"type"` // "gameRejoined"
	Symbol       symbol `json:"symbol"`
	RoomID       string `json:"roomId"`
	Board        board  `json:"board"`
	MyTurn       bool   `json:"myTurn"`
	OpponentName string `json:"opponentName"`
	Variant      string `json:"variant,omitempty"`
}

// OpponentMoveMessage announces an applied move to everyone in the room,
// including the mover and spectators.
type OpponentMoveMessage struct {
	Type      string `json:"type"` // "opponentMove"
	CellIndex int    `json:"cellIndex"`
	Symbol    symbol `json:"symbol"`
	Turn      symbol `json:"turn"` // whose move is legal next
}

// SpectatorPlayer is one player slot as seen by spectators.
type SpectatorPlayer struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// SpectatorStateMessage gives a joining spectator the full room state.
type SpectatorStateMessage struct {
	Type    string                     `json:"type"` // "spectatorGameState"
	RoomID  string                     `json:"roomId"`
	Players map[symbol]SpectatorPlayer `json:"players"`
	Board   board                      `json:"board"`
	Turn    symbol                     `json:"turn"`
	Variant string                     `json:"variant,omitempty"`
}

// ChatBroadcastMessage relays chat verbatim; the sender name is
// client-supplied and deliberately unauthenticated.
type ChatBroadcastMessage struct {
	Type    string `json:"type"` // "chatMessage"
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// ReactionMessage relays an ephemeral reaction to the room.
type ReactionMessage struct {
	Type    string `json:"type"` // "reaction"
	Sender  string `json:"sender"` // connection id
	Content string `json:"content"`
}

// LeaderboardMessage carries the current top win counts, keyed by display
// name. Sent to new connections and broadcast after every recorded win.
type LeaderboardMessage struct {
	Type    string           `json:"type"` // "leaderboardUpdate"
	Leaders map[string]int64 `json:"leaders"`
}
