package tactics

import (
	"fmt"

	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
)

type Action struct {
	UnitID       string
	Type         ActionType
	Target       *Position
	TargetUnitID string
}

// ActionResult Success 为 false 表示静默的空操作（已移动、已攻击、目标不存在）
type ActionResult struct {
	Type         ActionType
	UnitID       string
	Success      bool
	TargetUnitID string
	Damage       int
	Killed       bool
}

// ApplyAction 校验并执行单位行动，返回错误时状态不变
func (m *Match) ApplyAction(playerID string, action Action) (ActionResult, error) {
	result := ActionResult{Type: action.Type, UnitID: action.UnitID}
	if err := m.CheckTurn(playerID); err != nil {
		return result, err
	}
	unit, ok := m.Units[action.UnitID]
	if !ok || unit.OwnerID != playerID {
		return result, fmt.Errorf("%w: %s", dto.ErrInvalidUnit, action.UnitID)
	}

	switch action.Type {
	case ActionMove:
		return m.move(unit, action, result)
	case ActionAttack:
		return m.attack(unit, action, result)
	default:
		return result, fmt.Errorf("%w: unknown action type %q", dto.ErrInvalidMessage, action.Type)
	}
}

func (m *Match) move(unit *Unit, action Action, result ActionResult) (ActionResult, error) {
	if unit.HasMoved {
		return result, nil
	}
	if action.Target == nil {
		return result, fmt.Errorf("%w: move without target", dto.ErrInvalidTarget)
	}
	if err := m.validateMove(unit, *action.Target); err != nil {
		return result, err
	}
	unit.Position = *action.Target
	unit.HasMoved = true
	result.Success = true
	return result, nil
}

func (m *Match) validateMove(unit *Unit, to Position) error {
	if !m.Tiles.InBounds(to) {
		return fmt.Errorf("%w: (%d,%d) out of bounds", dto.ErrInvalidTarget, to.X, to.Y)
	}
	tile := m.Tiles.At(to)
	if !tile.Walkable {
		return fmt.Errorf("%w: (%d,%d) not walkable", dto.ErrInvalidTarget, to.X, to.Y)
	}
	for _, other := range m.Units {
		if other.ID != unit.ID && other.IsAlive && other.Position.X == to.X && other.Position.Y == to.Y {
			return fmt.Errorf("%w: (%d,%d) occupied", dto.ErrInvalidTarget, to.X, to.Y)
		}
	}
	if unit.Position.Distance(to)*tile.MovementCost > unit.Movement {
		return fmt.Errorf("%w: (%d,%d) out of movement range", dto.ErrInvalidTarget, to.X, to.Y)
	}
	return nil
}

func (m *Match) attack(unit *Unit, action Action, result ActionResult) (ActionResult, error) {
	if unit.HasAttacked {
		return result, nil
	}
	result.TargetUnitID = action.TargetUnitID
	target, ok := m.Units[action.TargetUnitID]
	if !ok {
		unit.HasAttacked = true
		return result, nil
	}
	if target.OwnerID == unit.OwnerID {
		return result, fmt.Errorf("%w: friendly unit %s", dto.ErrInvalidTarget, target.ID)
	}
	if unit.Position.Distance(target.Position) > unit.Range {
		return result, fmt.Errorf("%w: %s out of range", dto.ErrInvalidTarget, target.ID)
	}

	defense := target.Defense + m.Tiles.At(target.Position).DefenseBonus
	result.Damage = ComputeDamage(unit.Attack, defense)
	if target.takeDamage(result.Damage) {
		delete(m.Units, target.ID)
		result.Killed = true
	}
	unit.HasAttacked = true
	result.Success = true
	return result, nil
}
