package tactics

import (
	"fmt"
	"testing"

	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seatedMatch(t *testing.T, n int) *Match {
	t.Helper()
	m := NewMatch("m-1", 20, 20, 8)
	for i := 0; i < n; i++ {
		_, err := m.AddPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("player-%d", i))
		require.NoError(t, err)
	}
	return m
}

func startedMatch(t *testing.T, n int) *Match {
	t.Helper()
	m := seatedMatch(t, n)
	for id := range m.Players {
		require.NoError(t, m.SetReady(id, true))
	}
	require.NoError(t, m.Start())
	return m
}

func unitsOf(m *Match, owner string) []*Unit {
	var out []*Unit
	for _, u := range m.sortedUnits() {
		if u.OwnerID == owner {
			out = append(out, u)
		}
	}
	return out
}

func TestAddPlayer_PaletteAndSequence(t *testing.T) {
	m := seatedMatch(t, 3)

	assert.Equal(t, []string{"p0", "p1", "p2"}, m.Sequence.Seats())
	assert.Equal(t, Palette[0], m.Players["p0"].ColorTag)
	assert.Equal(t, Palette[2], m.Players["p2"].ColorTag)
	assert.Equal(t, 2, m.Players["p2"].SeatIndex)
}

func TestAddPlayer_Rejections(t *testing.T) {
	m := NewMatch("m-1", 20, 20, 2)
	_, err := m.AddPlayer("a", "a")
	require.NoError(t, err)
	_, err = m.AddPlayer("b", "b")
	require.NoError(t, err)

	_, err = m.AddPlayer("c", "c")
	assert.ErrorIs(t, err, dto.ErrRoomFull)

	require.NoError(t, m.SetReady("a", true))
	require.NoError(t, m.SetReady("b", true))
	require.NoError(t, m.Start())

	_, err = m.AddPlayer("d", "d")
	assert.ErrorIs(t, err, dto.ErrGameInProgress)
}

func TestStart_RequiresEveryoneReady(t *testing.T) {
	m := seatedMatch(t, 2)
	require.NoError(t, m.SetReady("p0", true))
	assert.ErrorIs(t, m.Start(), dto.ErrNotReady)

	single := seatedMatch(t, 1)
	require.NoError(t, single.SetReady("p0", true))
	assert.False(t, single.CanStart())
}

func TestStart_FourPlayersSpawnAtCorners(t *testing.T) {
	m := startedMatch(t, 4)

	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, PhaseBattle, m.Phase)
	assert.Equal(t, 1, m.TurnNumber)
	assert.Equal(t, 0, m.CurrentPlayerIndex())
	assert.Equal(t, "p0", m.CurrentPlayerID())
	assert.Len(t, m.Units, 12)

	corners := []Position{{X: 0, Y: 0}, {X: 19, Y: 19}, {X: 19, Y: 0}, {X: 0, Y: 19}}
	for seat, id := range m.Sequence.Seats() {
		units := unitsOf(m, id)
		require.Len(t, units, UnitsPerSeat)
		expected := SpawnPositions(seat, 20, 20)
		assert.Equal(t, corners[seat], expected[0])
		got := make([]Position, 0, len(units))
		for _, u := range units {
			got = append(got, u.Position)
			assert.True(t, u.IsAlive)
			assert.Equal(t, u.MaxHealth, u.Health)
		}
		assert.ElementsMatch(t, expected[:], got)
	}
}

func TestStart_SpawnAvoidsBlockedCells(t *testing.T) {
	m := seatedMatch(t, 2)
	blocked := []Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 19, Y: 18}}
	for _, p := range blocked {
		m.Tiles.Block(p.X, p.Y)
	}
	for id := range m.Players {
		require.NoError(t, m.SetReady(id, true))
	}
	require.NoError(t, m.Start())

	used := make(map[Position]string)
	for _, id := range []string{"p0", "p1"} {
		units := unitsOf(m, id)
		require.Len(t, units, UnitsPerSeat)
		for _, u := range units {
			assert.True(t, m.Tiles.At(u.Position).Walkable, "%s 出生在不可走格 %+v", u.ID, u.Position)
			assert.True(t, m.Tiles.InBounds(u.Position))
			prev, dup := used[u.Position]
			require.False(t, dup, "%s 与 %s 重叠于 %+v", u.ID, prev, u.Position)
			used[u.Position] = u.ID
		}
	}
	// 未被挡住的出生点保持不变
	assert.Equal(t, "p1", m.Units[used[Position{X: 19, Y: 19}]].OwnerID)
	_, onCorner := used[Position{X: 0, Y: 1}]
	assert.True(t, onCorner)
}

func TestSpawnPositions_EdgeMidpointsDoNotCollide(t *testing.T) {
	used := make(map[Position]int)
	for seat := 0; seat < MaxSeats; seat++ {
		for _, p := range SpawnPositions(seat, 20, 20) {
			prev, dup := used[p]
			require.False(t, dup, "seat %d collides with seat %d at %+v", seat, prev, p)
			used[p] = seat
			assert.True(t, p.X >= 0 && p.X < 20 && p.Y >= 0 && p.Y < 20)
		}
	}
}

func TestCombat_ClampsAndRemovesDeadUnit(t *testing.T) {
	m := startedMatch(t, 2)
	attacker := unitsOf(m, "p0")[0]
	defender := unitsOf(m, "p1")[0]
	attacker.Attack, attacker.Range = 20, 1
	defender.Defense, defender.Health = 5, 12
	defender.Position = Position{X: attacker.Position.X + 1, Y: attacker.Position.Y}
	// 挪开占位的单位，保证相邻
	for _, u := range m.Units {
		if u.ID != attacker.ID && u.ID != defender.ID && u.Position == defender.Position {
			u.Position = Position{X: 10, Y: 10}
		}
	}

	res, err := m.ApplyAction("p0", Action{UnitID: attacker.ID, Type: ActionAttack, TargetUnitID: defender.ID})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 15, res.Damage)
	assert.True(t, res.Killed)
	assert.Equal(t, 0, defender.Health)
	assert.False(t, defender.IsAlive)
	assert.NotContains(t, m.Units, defender.ID)
	assert.True(t, attacker.HasAttacked)
}

func TestComputeDamage_Minimum(t *testing.T) {
	assert.Equal(t, 1, ComputeDamage(3, 10))
	assert.Equal(t, 15, ComputeDamage(20, 5))
}

func TestAttack_Validation(t *testing.T) {
	m := startedMatch(t, 2)
	own := unitsOf(m, "p0")
	enemy := unitsOf(m, "p1")[0]

	_, err := m.ApplyAction("p0", Action{UnitID: own[0].ID, Type: ActionAttack, TargetUnitID: own[1].ID})
	assert.ErrorIs(t, err, dto.ErrInvalidTarget)

	_, err = m.ApplyAction("p0", Action{UnitID: own[0].ID, Type: ActionAttack, TargetUnitID: enemy.ID})
	assert.ErrorIs(t, err, dto.ErrInvalidTarget)
	assert.False(t, own[0].HasAttacked)

	// 目标不存在：空操作，但本回合攻击机会用掉
	res, err := m.ApplyAction("p0", Action{UnitID: own[0].ID, Type: ActionAttack, TargetUnitID: "ghost"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, own[0].HasAttacked)
}

func TestMove_SecondMoveIsNoop(t *testing.T) {
	m := startedMatch(t, 2)
	unit := unitsOf(m, "p0")[0]
	target := Position{X: unit.Position.X + 1, Y: unit.Position.Y + 1}

	res, err := m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove, Target: &target})
	require.NoError(t, err)
	require.True(t, res.Success)

	before := *unit
	other := Position{X: 5, Y: 5}
	res, err = m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove, Target: &other})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, before, *unit)
}

func TestMove_Validation(t *testing.T) {
	m := startedMatch(t, 2)
	units := unitsOf(m, "p0")
	unit := units[0]

	cases := map[string]Position{
		"out of bounds": {X: -1, Y: 0},
		"occupied":      units[1].Position,
		"too far":       {X: 10, Y: 10},
	}
	m.Tiles.Block(1, 1)
	cases["blocked"] = Position{X: 1, Y: 1}

	for name, target := range cases {
		target := target
		_, err := m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove, Target: &target})
		assert.ErrorIs(t, err, dto.ErrInvalidTarget, name)
		assert.False(t, unit.HasMoved, name)
	}

	_, err := m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove})
	assert.ErrorIs(t, err, dto.ErrInvalidTarget)
}

func TestMove_TerrainCost(t *testing.T) {
	m := startedMatch(t, 2)
	unit := unitsOf(m, "p0")[0] // warrior, movement 3
	m.Tiles.Set(1, 1, Tile{Walkable: true, MovementCost: 2})

	// 距离 2 × 消耗 2 > 3
	target := Position{X: 1, Y: 1}
	_, err := m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove, Target: &target})
	assert.ErrorIs(t, err, dto.ErrInvalidTarget)

	m.Tiles.Set(1, 1, Tile{Walkable: true, MovementCost: 1})
	res, err := m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove, Target: &target})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestActions_OnlyCurrentSeat(t *testing.T) {
	m := startedMatch(t, 3)
	unit := unitsOf(m, "p1")[0]
	target := unit.Position

	_, err := m.ApplyAction("p1", Action{UnitID: unit.ID, Type: ActionMove, Target: &target})
	assert.ErrorIs(t, err, dto.ErrNotYourTurn)

	_, err = m.EndTurn("p2")
	assert.ErrorIs(t, err, dto.ErrNotYourTurn)

	// 不能操作别人的单位
	_, err = m.ApplyAction("p0", Action{UnitID: unit.ID, Type: ActionMove, Target: &target})
	assert.ErrorIs(t, err, dto.ErrInvalidUnit)
}

func TestEndTurn_SingleAuthorizedSeatAndFlagReset(t *testing.T) {
	m := startedMatch(t, 3)
	for round := 0; round < 7; round++ {
		current := m.CurrentPlayerID()
		assert.Equal(t, m.Sequence.Seats()[m.CurrentPlayerIndex()], current)
		for _, id := range m.Sequence.Seats() {
			if id != current {
				_, err := m.EndTurn(id)
				assert.ErrorIs(t, err, dto.ErrNotYourTurn)
			}
		}

		for _, u := range unitsOf(m, current) {
			u.HasMoved, u.HasAttacked = true, true
		}
		// 其他座位的标记在别人的回合里不应被重置
		other := m.Sequence.Seats()[(m.CurrentPlayerIndex()+1)%m.Sequence.Len()]
		otherUnit := unitsOf(m, other)[0]
		otherUnit.HasMoved = true

		change, err := m.EndTurn(current)
		require.NoError(t, err)
		assert.Equal(t, current, change.From)
		assert.Equal(t, round+2, change.TurnNumber)
		for _, u := range unitsOf(m, current) {
			assert.False(t, u.HasMoved)
			assert.False(t, u.HasAttacked)
		}
		assert.True(t, otherUnit.HasMoved)
		otherUnit.HasMoved = false
	}
}

func TestEndTurn_RefillsActionPoints(t *testing.T) {
	m := startedMatch(t, 2)
	m.Players["p1"].ActionPoints = 0
	_, err := m.EndTurn("p0")
	require.NoError(t, err)
	assert.Equal(t, DefaultActionPoints, m.Players["p1"].ActionPoints)
}

func TestForceAdvance(t *testing.T) {
	m := startedMatch(t, 3)

	_, moved := m.ForceAdvance("p1")
	assert.False(t, moved)

	change, moved := m.ForceAdvance("p0")
	require.True(t, moved)
	assert.Equal(t, "p1", change.To)
	assert.Equal(t, 2, m.TurnNumber)
	assert.Contains(t, m.Players, "p0")
}

func TestRemovePlayer_CurrentSeatPassesTurn(t *testing.T) {
	m := startedMatch(t, 3)
	_, err := m.EndTurn("p0")
	require.NoError(t, err)

	removal, err := m.RemovePlayer("p1")
	require.NoError(t, err)
	assert.Len(t, removal.Units, UnitsPerSeat)
	require.NotNil(t, removal.TurnChanged)
	assert.Equal(t, "p2", removal.TurnChanged.To)
	assert.Equal(t, "p2", m.CurrentPlayerID())
	assert.Equal(t, 1, m.Players["p2"].SeatIndex)
	assert.Empty(t, unitsOf(m, "p1"))
}

func TestRemovePlayer_EarlierSeatKeepsCurrent(t *testing.T) {
	m := startedMatch(t, 3)
	_, err := m.EndTurn("p0")
	require.NoError(t, err)

	removal, err := m.RemovePlayer("p0")
	require.NoError(t, err)
	assert.Nil(t, removal.TurnChanged)
	assert.Equal(t, "p1", m.CurrentPlayerID())
	assert.Equal(t, 0, m.CurrentPlayerIndex())
}

func TestCheckWinner(t *testing.T) {
	m := startedMatch(t, 3)
	_, finished := m.CheckWinner()
	assert.False(t, finished)

	_, err := m.RemovePlayer("p2")
	require.NoError(t, err)
	for _, u := range unitsOf(m, "p1") {
		delete(m.Units, u.ID)
	}

	winner, finished := m.CheckWinner()
	require.True(t, finished)
	assert.Equal(t, "p0", winner)
	assert.Equal(t, StatusFinished, m.Status)

	_, err = m.EndTurn("p0")
	assert.ErrorIs(t, err, dto.ErrRoomClosed)
}

func TestNewMatch_ClampsParameters(t *testing.T) {
	m := NewMatch("m", 2, 500, 20)
	assert.Equal(t, MinMapSize, m.MapWidth)
	assert.Equal(t, MaxMapSize, m.MapHeight)
	assert.Equal(t, MaxSeats, m.MaxPlayers)
}
