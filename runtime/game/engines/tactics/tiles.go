package tactics

type Tile struct {
	Walkable     bool `json:"walkable"`
	MovementCost int  `json:"movementCost"`
	DefenseBonus int  `json:"defenseBonus"`
}

var defaultTile = Tile{Walkable: true, MovementCost: 1}

type cell struct{ x, y int }

// TileMap 地图只保存与默认地形不同的格子
type TileMap struct {
	width     int
	height    int
	overrides map[cell]Tile
}

func NewTileMap(width, height int) *TileMap {
	return &TileMap{
		width:     width,
		height:    height,
		overrides: make(map[cell]Tile),
	}
}

func (m *TileMap) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.width && p.Y < m.height
}

func (m *TileMap) At(p Position) Tile {
	if t, ok := m.overrides[cell{p.X, p.Y}]; ok {
		return t
	}
	return defaultTile
}

// Set 越界的格子忽略，移动消耗至少为 1
func (m *TileMap) Set(x, y int, t Tile) {
	if !m.InBounds(Position{X: x, Y: y}) {
		return
	}
	if t.MovementCost < 1 {
		t.MovementCost = 1
	}
	if t == defaultTile {
		delete(m.overrides, cell{x, y})
		return
	}
	m.overrides[cell{x, y}] = t
}

func (m *TileMap) Block(x, y int) {
	m.Set(x, y, Tile{Walkable: false, MovementCost: 1})
}

// each 遍历非默认格子
func (m *TileMap) each(fn func(x, y int, t Tile)) {
	for c, t := range m.overrides {
		fn(c.x, c.y, t)
	}
}
