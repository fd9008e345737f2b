package tactics

import "github.com/MarcinPlaza1/tbs-game-sub000/common/utils"

type Status string

const (
	StatusWaiting  Status = "waiting"  // 大厅等待
	StatusActive   Status = "active"   // 对战中
	StatusFinished Status = "finished" // 已结束
)

type Phase string

const (
	PhaseDeployment Phase = "deployment"
	PhaseBattle     Phase = "battle"
)

type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionAttack ActionType = "attack"
)

type UnitType string

const (
	UnitWarrior UnitType = "warrior"
	UnitArcher  UnitType = "archer"
	UnitKnight  UnitType = "knight"
)

const (
	UnitsPerSeat        = 3
	DefaultActionPoints = 10
	MinSeats            = 2
	MaxSeats            = 8
	MinMapSize          = 8
	MaxMapSize          = 128
)

// Palette 座位颜色，按入座顺序轮转
var Palette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f1c40f",
	"#9b59b6", "#e67e22", "#1abc9c", "#ecf0f1",
}

type UnitStats struct {
	MaxHealth int
	Attack    int
	Defense   int
	Movement  int
	Range     int
}

// roster 每个座位开局的兵种，顺序即生成顺序
var roster = [UnitsPerSeat]UnitType{UnitWarrior, UnitArcher, UnitKnight}

var unitStats = map[UnitType]UnitStats{
	UnitWarrior: {MaxHealth: 100, Attack: 20, Defense: 10, Movement: 3, Range: 1},
	UnitArcher:  {MaxHealth: 70, Attack: 25, Defense: 5, Movement: 2, Range: 3},
	UnitKnight:  {MaxHealth: 120, Attack: 18, Defense: 15, Movement: 4, Range: 1},
}

func StatsOf(unitType UnitType) (UnitStats, bool) {
	stats, ok := unitStats[unitType]
	return stats, ok
}

type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
	Z int `json:"z" msgpack:"z"`
}

// Distance 平面曼哈顿距离，z 只用于渲染
func (p Position) Distance(o Position) int {
	return utils.Abs(p.X-o.X) + utils.Abs(p.Y-o.Y)
}
