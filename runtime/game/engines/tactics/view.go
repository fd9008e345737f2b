package tactics

// StateView 推送给客户端的完整状态
type StateView struct {
	MatchID            string   `json:"matchId" msgpack:"matchId"`
	Status             Status   `json:"status" msgpack:"status"`
	Phase              Phase    `json:"phase" msgpack:"phase"`
	TurnNumber         int      `json:"turnNumber" msgpack:"turnNumber"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex" msgpack:"currentPlayerIndex"`
	CurrentPlayerID    string   `json:"currentPlayerId,omitempty" msgpack:"currentPlayerId,omitempty"`
	MapWidth           int      `json:"mapWidth" msgpack:"mapWidth"`
	MapHeight          int      `json:"mapHeight" msgpack:"mapHeight"`
	MaxPlayers         int      `json:"maxPlayers" msgpack:"maxPlayers"`
	Players            []Player `json:"players" msgpack:"players"`
	Units              []Unit   `json:"units" msgpack:"units"`
	TurnSequence       []string `json:"turnSequence" msgpack:"turnSequence"`
	WinnerID           string   `json:"winnerId,omitempty" msgpack:"winnerId,omitempty"`
}

// View 值拷贝，可以安全地交给写协程
func (m *Match) View() *StateView {
	view := &StateView{
		MatchID:            m.ID,
		Status:             m.Status,
		Phase:              m.Phase,
		TurnNumber:         m.TurnNumber,
		CurrentPlayerIndex: m.Sequence.CurrentIndex(),
		CurrentPlayerID:    m.CurrentPlayerID(),
		MapWidth:           m.MapWidth,
		MapHeight:          m.MapHeight,
		MaxPlayers:         m.MaxPlayers,
		Players:            make([]Player, 0, len(m.Players)),
		Units:              make([]Unit, 0, len(m.Units)),
		TurnSequence:       m.Sequence.Seats(),
		WinnerID:           m.WinnerID,
	}
	for _, id := range view.TurnSequence {
		if p, ok := m.Players[id]; ok {
			view.Players = append(view.Players, *p)
		}
	}
	for _, u := range m.sortedUnits() {
		view.Units = append(view.Units, *u)
	}
	return view
}
