package events

import (
	"encoding/json"
	"fmt"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/domain/game"
)

// Client event types.
const (
	TypeRoomCreate    = "room:create"
	TypeRoomJoin      = "room:join"
	TypeRoomLeave     = "room:leave"
	TypeRoomKick      = "room:kick"
	TypeRoomRejoin    = "room:rejoin"
	TypeGameStart     = "game:start"
	TypeGameMove      = "game:move"
	TypeGameLeave     = "game:leave"
	TypeGameReconnect = "game:reconnect"
)

// Server event types.
const (
	TypeRoomCreateAck      = "room:create:ack"
	TypeRoomJoinAck        = "room:join:ack"
	TypeRoomLeaveAck       = "room:leave:ack"
	TypeRoomKickAck        = "room:kick:ack"
	TypeRoomKicked         = "room:kicked"
	TypeRoomRejoinAck      = "room:rejoin:ack"
	TypeRoomRefreshPreGame = "room:refresh:preGame"
	TypeGameStartAck       = "game:start:ack"
	TypeGameStarted        = "game:started"
	TypeGameMoveAck        = "game:move:ack"
	TypeGameNewMove        = "game:newMove"
	TypeGameReconnectAck   = "game:reconnect:ack"
	TypePlayerDisconnected = "room:playerDisconnect"
	TypePlayerReconnected  = "room:playerReconnect"
	TypeError              = "error"
)

// Message is the wire envelope shared by both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a typed payload into an envelope.
func NewMessage(eventType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: eventType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Message{Type: eventType, Data: data}, nil
}

// RoomCreateEvent starts a new room.
type RoomCreateEvent struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	GridSize   string `json:"gridSize"`
}

// RoomJoinEvent seats a player in an existing room.
type RoomJoinEvent struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	RoomID     string `json:"roomId"`
}

// RoomRejoinEvent re-seats a returning player. GridSize is only used when
// the room has to be recreated from scratch.
type RoomRejoinEvent struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	RoomID     string `json:"roomId"`
	GridSize   string `json:"gridSize"`
}

// RoomKickEvent removes another player; only the host may send it.
type RoomKickEvent struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

// GameMoveEvent records one move. NextMove names the next turn owner; when
// empty the server advances the turn to the next connected seat.
type GameMoveEvent struct {
	SelectedLine  string   `json:"selectedLine"`
	CapturedBoxes []string `json:"capturedBoxes"`
	NextMove      string   `json:"nextMove"`
	IsLastMove    bool     `json:"isLastMove"`
}

// GameReconnectEvent re-attaches a returning player to a running game. It
// carries its own identity because the new connection has no session context.
type GameReconnectEvent struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

// GameStateEvent carries the refreshed room state.
type GameStateEvent struct {
	GameState *game.RoomState `json:"gameState"`
}

// NewMoveEvent fans a recorded move out to the room.
type NewMoveEvent struct {
	SelectedLine  string          `json:"selectedLine"`
	CapturedBoxes []string        `json:"capturedBoxes"`
	GameState     *game.RoomState `json:"gameState"`
}

// ReconnectEvent returns both documents so the client can replay history.
type ReconnectEvent struct {
	GameState    *game.RoomState    `json:"gameState"`
	GameProgress *game.GameProgress `json:"gameProgress"`
}

// ErrorEvent is sent only to the client whose request failed.
type ErrorEvent struct {
	Message string `json:"message"`
}
