package tactics

import (
	"fmt"
	"sort"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/utils"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
)

// ToSnapshot 展平成可持久化的快照，Version 和 UpdatedAt 由调用方填写
func (m *Match) ToSnapshot() *entity.MatchSnapshot {
	snap := &entity.MatchSnapshot{
		MatchID:            m.ID,
		Status:             string(m.Status),
		Phase:              string(m.Phase),
		TurnNumber:         m.TurnNumber,
		CurrentPlayerIndex: m.Sequence.CurrentIndex(),
		MapWidth:           m.MapWidth,
		MapHeight:          m.MapHeight,
		MaxPlayers:         m.MaxPlayers,
		TurnSequence:       m.Sequence.Seats(),
		Sessions:           make(map[string]string, len(m.Sessions)),
		ColorCursor:        m.colorCursor,
		UnitSeq:            m.unitSeq,
		WinnerID:           m.WinnerID,
	}
	for userID, connID := range m.Sessions {
		snap.Sessions[userID] = connID
	}
	for _, id := range m.Sequence.Seats() {
		p := m.Players[id]
		snap.Players = append(snap.Players, entity.PlayerRecord{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			ColorTag:     p.ColorTag,
			SeatIndex:    p.SeatIndex,
			IsReady:      p.IsReady,
			IsActive:     p.IsActive,
			ActionPoints: p.ActionPoints,
		})
	}
	for _, u := range m.sortedUnits() {
		snap.Units = append(snap.Units, entity.UnitRecord{
			ID:          u.ID,
			OwnerID:     u.OwnerID,
			UnitType:    string(u.UnitType),
			Position:    entity.PositionRecord{X: u.Position.X, Y: u.Position.Y, Z: u.Position.Z},
			Health:      u.Health,
			MaxHealth:   u.MaxHealth,
			Attack:      u.Attack,
			Defense:     u.Defense,
			Movement:    u.Movement,
			Range:       u.Range,
			HasMoved:    u.HasMoved,
			HasAttacked: u.HasAttacked,
			IsAlive:     u.IsAlive,
		})
	}
	m.Tiles.each(func(x, y int, t Tile) {
		snap.Terrain = append(snap.Terrain, entity.TerrainRecord{
			X: x, Y: y, Walkable: t.Walkable, MovementCost: t.MovementCost, DefenseBonus: t.DefenseBonus,
		})
	})
	sort.Slice(snap.Terrain, func(i, j int) bool {
		if snap.Terrain[i].Y != snap.Terrain[j].Y {
			return snap.Terrain[i].Y < snap.Terrain[j].Y
		}
		return snap.Terrain[i].X < snap.Terrain[j].X
	})
	return snap
}

// FromSnapshot 重建对局。快照违反状态不变量时返回 ErrDeserializationFailure
// 恢复出来的玩家都没有连接，全部标记为离线
func FromSnapshot(snap *entity.MatchSnapshot) (*Match, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", dto.ErrDeserializationFailure)
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dto.ErrDeserializationFailure, snap.MatchID, err)
	}

	m := &Match{
		ID:          snap.MatchID,
		Status:      Status(snap.Status),
		Phase:       Phase(snap.Phase),
		TurnNumber:  snap.TurnNumber,
		MapWidth:    snap.MapWidth,
		MapHeight:   snap.MapHeight,
		MaxPlayers:  utils.Clamp(snap.MaxPlayers, MinSeats, MaxSeats),
		Players:     make(map[string]*Player, len(snap.Players)),
		Units:       make(map[string]*Unit, len(snap.Units)),
		Sequence:    NewTurnSequence(snap.TurnSequence...),
		Sessions:    make(map[string]string, len(snap.Sessions)),
		Tiles:       NewTileMap(snap.MapWidth, snap.MapHeight),
		WinnerID:    snap.WinnerID,
		colorCursor: snap.ColorCursor,
		unitSeq:     snap.UnitSeq,
	}
	if len(snap.TurnSequence) > 0 {
		m.Sequence.SetCurrent(snap.CurrentPlayerIndex)
	}
	for userID, connID := range snap.Sessions {
		m.Sessions[userID] = connID
	}
	for _, p := range snap.Players {
		m.Players[p.ID] = &Player{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			ColorTag:     p.ColorTag,
			SeatIndex:    p.SeatIndex,
			IsReady:      p.IsReady,
			IsActive:     false,
			ActionPoints: p.ActionPoints,
		}
	}
	for _, u := range snap.Units {
		if !u.IsAlive || u.Health <= 0 {
			continue
		}
		m.Units[u.ID] = &Unit{
			ID:          u.ID,
			OwnerID:     u.OwnerID,
			UnitType:    UnitType(u.UnitType),
			Position:    Position{X: u.Position.X, Y: u.Position.Y, Z: u.Position.Z},
			Health:      u.Health,
			MaxHealth:   u.MaxHealth,
			Attack:      u.Attack,
			Defense:     u.Defense,
			Movement:    u.Movement,
			Range:       u.Range,
			HasMoved:    u.HasMoved,
			HasAttacked: u.HasAttacked,
			IsAlive:     true,
		}
	}
	for _, t := range snap.Terrain {
		m.Tiles.Set(t.X, t.Y, Tile{Walkable: t.Walkable, MovementCost: t.MovementCost, DefenseBonus: t.DefenseBonus})
	}
	return m, nil
}

func validateSnapshot(snap *entity.MatchSnapshot) error {
	if snap.MatchID == "" {
		return fmt.Errorf("missing match id")
	}
	switch Status(snap.Status) {
	case StatusWaiting, StatusActive, StatusFinished:
	default:
		return fmt.Errorf("unknown status %q", snap.Status)
	}
	switch Phase(snap.Phase) {
	case PhaseDeployment, PhaseBattle:
	default:
		return fmt.Errorf("unknown phase %q", snap.Phase)
	}
	if snap.MapWidth < MinMapSize || snap.MapHeight < MinMapSize || snap.MapWidth > MaxMapSize || snap.MapHeight > MaxMapSize {
		return fmt.Errorf("map size %dx%d out of range", snap.MapWidth, snap.MapHeight)
	}
	if snap.TurnNumber < 1 {
		return fmt.Errorf("turn number %d", snap.TurnNumber)
	}

	players := make(map[string]struct{}, len(snap.Players))
	for _, p := range snap.Players {
		if p.ID == "" {
			return fmt.Errorf("player without id")
		}
		players[p.ID] = struct{}{}
	}
	if len(players) != len(snap.Players) || len(snap.TurnSequence) != len(players) {
		return fmt.Errorf("players and turn sequence mismatch")
	}
	seen := make(map[string]struct{}, len(snap.TurnSequence))
	for _, id := range snap.TurnSequence {
		if _, ok := players[id]; !ok {
			return fmt.Errorf("turn sequence seat %s has no player", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate seat %s", id)
		}
		seen[id] = struct{}{}
	}
	if Status(snap.Status) == StatusActive {
		if len(snap.TurnSequence) == 0 {
			return fmt.Errorf("active match without seats")
		}
		if snap.CurrentPlayerIndex < 0 || snap.CurrentPlayerIndex >= len(snap.TurnSequence) {
			return fmt.Errorf("current player index %d out of range", snap.CurrentPlayerIndex)
		}
	}
	for _, u := range snap.Units {
		if u.ID == "" {
			return fmt.Errorf("unit without id")
		}
		if _, ok := players[u.OwnerID]; !ok {
			return fmt.Errorf("unit %s owned by unknown player %s", u.ID, u.OwnerID)
		}
	}
	return nil
}

func (m *Match) sortedUnits() []*Unit {
	units := make([]*Unit, 0, len(m.Units))
	for _, u := range m.Units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].OwnerID != units[j].OwnerID {
			return m.Sequence.IndexOf(units[i].OwnerID) < m.Sequence.IndexOf(units[j].OwnerID)
		}
		return units[i].ID < units[j].ID
	})
	return units
}
