package tactics

import (
	"fmt"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/utils"
)

// spawnAnchors 前四个座位在四个角（对角优先），之后是四条边的中点
func spawnAnchors(width, height int) []Position {
	return []Position{
		{X: 0, Y: 0},
		{X: width - 1, Y: height - 1},
		{X: width - 1, Y: 0},
		{X: 0, Y: height - 1},
		{X: width / 2, Y: 0},
		{X: width / 2, Y: height - 1},
		{X: 0, Y: height / 2},
		{X: width - 1, Y: height / 2},
	}
}

// SpawnPositions 座位的三个出生点：锚点，以及朝地图中心方向的两个相邻格
func SpawnPositions(seatIndex, width, height int) [UnitsPerSeat]Position {
	anchors := spawnAnchors(width, height)
	anchor := anchors[seatIndex%len(anchors)]
	dx, dy := 1, 1
	if anchor.X >= width/2 {
		dx = -1
	}
	if anchor.Y >= height/2 {
		dy = -1
	}
	return [UnitsPerSeat]Position{
		anchor,
		{X: anchor.X + dx, Y: anchor.Y},
		{X: anchor.X, Y: anchor.Y + dy},
	}
}

// spawnUnits 出生点不可走或已被占用时，改放到最近的空闲可走格
func (m *Match) spawnUnits() {
	occupied := make(map[Position]bool)
	for seat, ownerID := range m.Sequence.Seats() {
		positions := SpawnPositions(seat, m.MapWidth, m.MapHeight)
		for i, unitType := range roster {
			pos, ok := m.freeCellNear(positions[i], occupied)
			if !ok {
				continue
			}
			occupied[pos] = true
			m.unitSeq++
			id := fmt.Sprintf("u-%d", m.unitSeq)
			m.Units[id] = NewUnit(id, ownerID, unitType, pos)
		}
	}
}

// freeCellNear 按曼哈顿距离由近到远找空闲可走格，同距离时按 x、y 从小到大
func (m *Match) freeCellNear(p Position, occupied map[Position]bool) (Position, bool) {
	free := func(c Position) bool {
		return m.Tiles.InBounds(c) && m.Tiles.At(c).Walkable && !occupied[c]
	}
	if free(p) {
		return p, true
	}
	for d := 1; d <= m.MapWidth+m.MapHeight; d++ {
		for dx := -d; dx <= d; dx++ {
			rest := d - utils.Abs(dx)
			for _, dy := range []int{-rest, rest} {
				if c := (Position{X: p.X + dx, Y: p.Y + dy}); free(c) {
					return c, true
				}
				if rest == 0 {
					break
				}
			}
		}
	}
	return Position{}, false
}
