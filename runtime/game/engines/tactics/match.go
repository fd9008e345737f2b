package tactics

import (
	"fmt"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/utils"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
)

// Match 一局对局的权威状态，只由所属房间的 actor 协程修改，自身不加锁
type Match struct {
	ID         string
	Status     Status
	Phase      Phase
	TurnNumber int
	MapWidth   int
	MapHeight  int
	MaxPlayers int
	Players    map[string]*Player
	Units      map[string]*Unit
	Sequence   *TurnSequence
	Sessions   map[string]string // userID -> connID
	Tiles      *TileMap
	WinnerID   string

	colorCursor int
	unitSeq     int
}

func NewMatch(id string, width, height, maxPlayers int) *Match {
	width = utils.Clamp(width, MinMapSize, MaxMapSize)
	height = utils.Clamp(height, MinMapSize, MaxMapSize)
	maxPlayers = utils.Clamp(maxPlayers, MinSeats, MaxSeats)
	return &Match{
		ID:         id,
		Status:     StatusWaiting,
		Phase:      PhaseDeployment,
		TurnNumber: 1,
		MapWidth:   width,
		MapHeight:  height,
		MaxPlayers: maxPlayers,
		Players:    make(map[string]*Player),
		Units:      make(map[string]*Unit),
		Sequence:   NewTurnSequence(),
		Sessions:   make(map[string]string),
		Tiles:      NewTileMap(width, height),
	}
}

// CurrentPlayerID 只有对战中才有持有回合的座位
func (m *Match) CurrentPlayerID() string {
	if m.Status != StatusActive {
		return ""
	}
	id, _ := m.Sequence.Current()
	return id
}

func (m *Match) CurrentPlayerIndex() int {
	return m.Sequence.CurrentIndex()
}

// AddPlayer 新玩家入座，只允许在大厅阶段
func (m *Match) AddPlayer(id, displayName string) (*Player, error) {
	if _, ok := m.Players[id]; ok {
		return nil, fmt.Errorf("player %s already seated", id)
	}
	if m.Status != StatusWaiting {
		return nil, dto.ErrGameInProgress
	}
	if len(m.Players) >= m.MaxPlayers {
		return nil, dto.ErrRoomFull
	}
	color := Palette[m.colorCursor%len(Palette)]
	m.colorCursor++

	player := NewPlayer(id, displayName, color, m.Sequence.Len())
	m.Players[id] = player
	m.Sequence.Append(id)
	return player, nil
}

// Removal 删除座位的结果
type Removal struct {
	Units       []string    // 被一并移除的单位
	TurnChanged *TurnChange // 被删座位持有回合时，回合交给下一个座位
}

// RemovePlayer 永久移除座位、回合序列中的位置以及它的所有单位
func (m *Match) RemovePlayer(id string) (Removal, error) {
	var removal Removal
	if _, ok := m.Players[id]; !ok {
		return removal, dto.ErrSeatNotFound
	}
	delete(m.Players, id)
	delete(m.Sessions, id)
	for unitID, unit := range m.Units {
		if unit.OwnerID == id {
			delete(m.Units, unitID)
			removal.Units = append(removal.Units, unitID)
		}
	}
	_, wasCurrent := m.Sequence.Remove(id)
	m.reindexSeats()

	if m.Status == StatusActive && wasCurrent && m.Sequence.Len() > 0 {
		removal.TurnChanged = m.beginTurn(id)
	}
	return removal, nil
}

func (m *Match) reindexSeats() {
	for i, id := range m.Sequence.Seats() {
		if p, ok := m.Players[id]; ok {
			p.SeatIndex = i
		}
	}
}

func (m *Match) SetActive(id string, active bool) bool {
	p, ok := m.Players[id]
	if !ok {
		return false
	}
	p.IsActive = active
	return true
}

// SetReady 对局开始后忽略
func (m *Match) SetReady(id string, ready bool) error {
	p, ok := m.Players[id]
	if !ok {
		return dto.ErrSeatNotFound
	}
	if m.Status != StatusWaiting {
		return nil
	}
	p.IsReady = ready
	return nil
}

func (m *Match) CanStart() bool {
	if m.Status != StatusWaiting || m.Sequence.Len() < MinSeats {
		return false
	}
	for _, p := range m.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// Start 大厅 -> 对战，生成单位，回合从第一个座位开始
func (m *Match) Start() error {
	if !m.CanStart() {
		return dto.ErrNotReady
	}
	m.Status = StatusActive
	m.Phase = PhaseBattle
	m.TurnNumber = 1
	m.Sequence.Reset()
	m.reindexSeats()
	m.spawnUnits()
	for _, p := range m.Players {
		p.ActionPoints = DefaultActionPoints
	}
	return nil
}

// CheckTurn 只有持有回合的座位能行动
func (m *Match) CheckTurn(id string) error {
	switch m.Status {
	case StatusFinished:
		return dto.ErrRoomClosed
	case StatusWaiting:
		return dto.ErrNotReady
	}
	if m.CurrentPlayerID() != id {
		return dto.ErrNotYourTurn
	}
	return nil
}

type TurnChange struct {
	From       string
	To         string
	Index      int
	TurnNumber int
}

// EndTurn 当前座位主动结束回合
func (m *Match) EndTurn(id string) (*TurnChange, error) {
	if err := m.CheckTurn(id); err != nil {
		return nil, err
	}
	return m.advance(), nil
}

// ForceAdvance 持有回合的座位断线时直接跳过，不是当前座位则不动
func (m *Match) ForceAdvance(id string) (*TurnChange, bool) {
	if m.Status != StatusActive || m.CurrentPlayerID() != id {
		return nil, false
	}
	return m.advance(), true
}

func (m *Match) advance() *TurnChange {
	outgoing, _ := m.Sequence.Current()
	for _, u := range m.Units {
		if u.OwnerID == outgoing {
			u.resetTurn()
		}
	}
	m.Sequence.Advance()
	return m.beginTurn(outgoing)
}

// beginTurn 回合数加一，给新的当前座位补满行动点
func (m *Match) beginTurn(from string) *TurnChange {
	m.TurnNumber++
	to, _ := m.Sequence.Current()
	if p, ok := m.Players[to]; ok {
		p.ActionPoints = DefaultActionPoints
	}
	return &TurnChange{
		From:       from,
		To:         to,
		Index:      m.Sequence.CurrentIndex(),
		TurnNumber: m.TurnNumber,
	}
}

// CheckWinner 只剩一个座位，或者只剩一个座位还有存活单位时结束对局
func (m *Match) CheckWinner() (winnerID string, finished bool) {
	if m.Status != StatusActive {
		return "", false
	}
	seats := m.Sequence.Seats()
	if len(seats) > 1 {
		alive := make(map[string]struct{})
		for _, u := range m.Units {
			if u.IsAlive {
				alive[u.OwnerID] = struct{}{}
			}
		}
		if len(alive) > 1 {
			return "", false
		}
		seats = seats[:0]
		for id := range alive {
			seats = append(seats, id)
		}
	}
	if len(seats) == 1 {
		winnerID = seats[0]
	}
	m.Status = StatusFinished
	m.WinnerID = winnerID
	return winnerID, true
}
