package tactics

// TurnSequence 按入座顺序排列的座位，决定轮到谁
// 不依赖 map 遍历顺序，删除座位时修正当前指针
type TurnSequence struct {
	seats   []string
	current int
}

func NewTurnSequence(seats ...string) *TurnSequence {
	ts := &TurnSequence{seats: make([]string, 0, len(seats))}
	for _, seat := range seats {
		ts.Append(seat)
	}
	return ts
}

func (ts *TurnSequence) Len() int {
	return len(ts.seats)
}

// Seats 返回副本
func (ts *TurnSequence) Seats() []string {
	out := make([]string, len(ts.seats))
	copy(out, ts.seats)
	return out
}

func (ts *TurnSequence) CurrentIndex() int {
	return ts.current
}

func (ts *TurnSequence) Current() (string, bool) {
	if len(ts.seats) == 0 {
		return "", false
	}
	return ts.seats[ts.current], true
}

func (ts *TurnSequence) IndexOf(seat string) int {
	for i, s := range ts.seats {
		if s == seat {
			return i
		}
	}
	return -1
}

// Append 已存在的座位不重复加入
func (ts *TurnSequence) Append(seat string) bool {
	if ts.IndexOf(seat) >= 0 {
		return false
	}
	ts.seats = append(ts.seats, seat)
	return true
}

func (ts *TurnSequence) Reset() {
	ts.current = 0
}

// SetCurrent 恢复快照时使用
func (ts *TurnSequence) SetCurrent(index int) bool {
	if index < 0 || index >= len(ts.seats) {
		return false
	}
	ts.current = index
	return true
}

// Advance 轮到下一个座位并返回它
func (ts *TurnSequence) Advance() string {
	if len(ts.seats) == 0 {
		return ""
	}
	ts.current = (ts.current + 1) % len(ts.seats)
	return ts.seats[ts.current]
}

// Remove 删除座位，wasCurrent 表示被删的座位正持有回合
// 此时指针落在原来的下一个座位上
func (ts *TurnSequence) Remove(seat string) (removed bool, wasCurrent bool) {
	idx := ts.IndexOf(seat)
	if idx < 0 {
		return false, false
	}
	wasCurrent = idx == ts.current
	ts.seats = append(ts.seats[:idx], ts.seats[idx+1:]...)

	switch {
	case len(ts.seats) == 0:
		ts.current = 0
	case idx < ts.current:
		ts.current--
	case wasCurrent:
		ts.current %= len(ts.seats)
	}
	return true, wasCurrent
}
