package tactics

type Unit struct {
	ID          string   `json:"id" msgpack:"id"`
	OwnerID     string   `json:"ownerId" msgpack:"ownerId"`
	UnitType    UnitType `json:"unitType" msgpack:"unitType"`
	Position    Position `json:"position" msgpack:"position"`
	Health      int      `json:"health" msgpack:"health"`
	MaxHealth   int      `json:"maxHealth" msgpack:"maxHealth"`
	Attack      int      `json:"attack" msgpack:"attack"`
	Defense     int      `json:"defense" msgpack:"defense"`
	Movement    int      `json:"movement" msgpack:"movement"`
	Range       int      `json:"range" msgpack:"range"`
	HasMoved    bool     `json:"hasMoved" msgpack:"hasMoved"`
	HasAttacked bool     `json:"hasAttacked" msgpack:"hasAttacked"`
	IsAlive     bool     `json:"isAlive" msgpack:"isAlive"`
}

func NewUnit(id, ownerID string, unitType UnitType, pos Position) *Unit {
	stats := unitStats[unitType]
	return &Unit{
		ID:        id,
		OwnerID:   ownerID,
		UnitType:  unitType,
		Position:  pos,
		Health:    stats.MaxHealth,
		MaxHealth: stats.MaxHealth,
		Attack:    stats.Attack,
		Defense:   stats.Defense,
		Movement:  stats.Movement,
		Range:     stats.Range,
		IsAlive:   true,
	}
}

// takeDamage 生命值下限为 0，归零即死亡
func (u *Unit) takeDamage(damage int) bool {
	u.Health -= damage
	if u.Health <= 0 {
		u.Health = 0
		u.IsAlive = false
	}
	return !u.IsAlive
}

func (u *Unit) resetTurn() {
	u.HasMoved = false
	u.HasAttacked = false
}

// ComputeDamage 至少造成 1 点伤害
func ComputeDamage(attack, defense int) int {
	damage := attack - defense
	if damage < 1 {
		return 1
	}
	return damage
}
