package share

import "github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"

// 服务端 -> 客户端的消息名
const (
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventGameStarted      = "game_started"
	EventTurnChanged      = "turn_changed"
	EventUnitActionResult = "unit_action_result"
	EventChatMessage      = "chat_message"
	EventError            = "error"
	EventGameState        = "game_state"
	EventGameOver         = "game_over"
)

// Event 服务端推送，同样是封闭集合
type Event interface {
	EventType() string
	sealedEvent()
}

type PlayerJoinedEvent struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	ColorTag    string `json:"colorTag"`
	Reconnected bool   `json:"reconnected"`
}

func (PlayerJoinedEvent) EventType() string { return EventPlayerJoined }
func (PlayerJoinedEvent) sealedEvent()      {}

// PlayerLeftEvent Temporary 为 true 表示断线，仍可在宽限期内重连
type PlayerLeftEvent struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Temporary   bool   `json:"temporary"`
}

func (PlayerLeftEvent) EventType() string { return EventPlayerLeft }
func (PlayerLeftEvent) sealedEvent()      {}

type GameStartedEvent struct {
	GameState *tactics.StateView `json:"gameState"`
}

func (GameStartedEvent) EventType() string { return EventGameStarted }
func (GameStartedEvent) sealedEvent()      {}

type TurnChangedEvent struct {
	CurrentPlayerIndex int                `json:"currentPlayerIndex"`
	CurrentPlayerID    string             `json:"currentPlayerId"`
	TurnNumber         int                `json:"turnNumber"`
	GameState          *tactics.StateView `json:"gameState"`
}

func (TurnChangedEvent) EventType() string { return EventTurnChanged }
func (TurnChangedEvent) sealedEvent()      {}

type UnitActionResultEvent struct {
	Type         string             `json:"type"`
	UnitID       string             `json:"unitId"`
	Success      bool               `json:"success"`
	TargetUnitID string             `json:"targetUnitId,omitempty"`
	Damage       int                `json:"damage,omitempty"`
	Killed       bool               `json:"killed,omitempty"`
	GameState    *tactics.StateView `json:"gameState"`
}

func (UnitActionResultEvent) EventType() string { return EventUnitActionResult }
func (UnitActionResultEvent) sealedEvent()      {}

type ChatMessageEvent struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix 毫秒
}

func (ChatMessageEvent) EventType() string { return EventChatMessage }
func (ChatMessageEvent) sealedEvent()      {}

type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (ErrorEvent) EventType() string { return EventError }
func (ErrorEvent) sealedEvent()      {}

type GameStateEvent struct {
	GameState *tactics.StateView `json:"gameState"`
}

func (GameStateEvent) EventType() string { return EventGameState }
func (GameStateEvent) sealedEvent()      {}

type GameOverEvent struct {
	WinnerID  string             `json:"winnerId"`
	GameState *tactics.StateView `json:"gameState"`
}

func (GameOverEvent) EventType() string { return EventGameOver }
func (GameOverEvent) sealedEvent()      {}
