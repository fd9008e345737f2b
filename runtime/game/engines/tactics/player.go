package tactics

// Player 一个座位上的玩家，断线只标记 IsActive，不删除
type Player struct {
	ID           string `json:"id" msgpack:"id"`
	DisplayName  string `json:"displayName" msgpack:"displayName"`
	ColorTag     string `json:"colorTag" msgpack:"colorTag"`
	SeatIndex    int    `json:"seatIndex" msgpack:"seatIndex"`
	IsReady      bool   `json:"isReady" msgpack:"isReady"`
	IsActive     bool   `json:"isActive" msgpack:"isActive"`
	ActionPoints int    `json:"actionPoints" msgpack:"actionPoints"`
}

func NewPlayer(id, displayName, color string, seatIndex int) *Player {
	return &Player{
		ID:           id,
		DisplayName:  displayName,
		ColorTag:     color,
		SeatIndex:    seatIndex,
		IsActive:     true,
		ActionPoints: DefaultActionPoints,
	}
}
