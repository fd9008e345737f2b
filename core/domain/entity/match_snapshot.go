package entity

import "time"

// 快照里的对局状态，和 tactics.Status 保持同样的取值
const (
	MatchStatusWaiting  = "waiting"
	MatchStatusActive   = "active"
	MatchStatusFinished = "finished"
)

// MatchSnapshot 一局对局的持久化形态，按 MatchID 覆盖写
// 存储层只把它当作不透明文档，不解析内部字段
type MatchSnapshot struct {
	MatchID            string            `bson:"match_id" json:"matchId"`
	Status             string            `bson:"status" json:"status"`
	Phase              string            `bson:"phase" json:"phase"`
	TurnNumber         int               `bson:"turn_number" json:"turnNumber"`
	CurrentPlayerIndex int               `bson:"current_player_index" json:"currentPlayerIndex"`
	MapWidth           int               `bson:"map_width" json:"mapWidth"`
	MapHeight          int               `bson:"map_height" json:"mapHeight"`
	MaxPlayers         int               `bson:"max_players" json:"maxPlayers"`
	Players            []PlayerRecord    `bson:"players" json:"players"`
	Units              []UnitRecord      `bson:"units" json:"units"`
	TurnSequence       []string          `bson:"turn_sequence" json:"turnSequence"`
	Sessions           map[string]string `bson:"sessions" json:"sessions"` // userID -> connID
	Terrain            []TerrainRecord   `bson:"terrain,omitempty" json:"terrain,omitempty"`
	ColorCursor        int               `bson:"color_cursor" json:"colorCursor"`
	UnitSeq            int               `bson:"unit_seq" json:"unitSeq"`
	WinnerID           string            `bson:"winner_id,omitempty" json:"winnerId,omitempty"`
	Version            int64             `bson:"version" json:"version"`
	UpdatedAt          time.Time         `bson:"updated_at" json:"updatedAt"`
}

type PlayerRecord struct {
	ID           string `bson:"id" json:"id"`
	DisplayName  string `bson:"display_name" json:"displayName"`
	ColorTag     string `bson:"color_tag" json:"colorTag"`
	SeatIndex    int    `bson:"seat_index" json:"seatIndex"`
	IsReady      bool   `bson:"is_ready" json:"isReady"`
	IsActive     bool   `bson:"is_active" json:"isActive"`
	ActionPoints int    `bson:"action_points" json:"actionPoints"`
}

type PositionRecord struct {
	X int `bson:"x" json:"x"`
	Y int `bson:"y" json:"y"`
	Z int `bson:"z" json:"z"`
}

// TerrainRecord 只记录与默认地形不同的格子
type TerrainRecord struct {
	X            int  `bson:"x" json:"x"`
	Y            int  `bson:"y" json:"y"`
	Walkable     bool `bson:"walkable" json:"walkable"`
	MovementCost int  `bson:"movement_cost" json:"movementCost"`
	DefenseBonus int  `bson:"defense_bonus" json:"defenseBonus"`
}

type UnitRecord struct {
	ID          string         `bson:"id" json:"id"`
	OwnerID     string         `bson:"owner_id" json:"ownerId"`
	UnitType    string         `bson:"unit_type" json:"unitType"`
	Position    PositionRecord `bson:"position" json:"position"`
	Health      int            `bson:"health" json:"health"`
	MaxHealth   int            `bson:"max_health" json:"maxHealth"`
	Attack      int            `bson:"attack" json:"attack"`
	Defense     int            `bson:"defense" json:"defense"`
	Movement    int            `bson:"movement" json:"movement"`
	Range       int            `bson:"range" json:"range"`
	HasMoved    bool           `bson:"has_moved" json:"hasMoved"`
	HasAttacked bool           `bson:"has_attacked" json:"hasAttacked"`
	IsAlive     bool           `bson:"is_alive" json:"isAlive"`
}

// Finished 已结束的对局不再参与启动恢复
func (s *MatchSnapshot) Finished() bool {
	return s.Status == MatchStatusFinished
}
