package share

import "github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"

// 客户端 -> 服务端的消息名
const (
	IntentPlayerReady = "player_ready"
	IntentUnitAction  = "unit_action"
	IntentEndTurn     = "end_turn"
	IntentChat        = "chat_message"
	IntentLeave       = "leave_game"
)

// Intent 客户端意图，封闭的变体集合，房间按具体类型 switch
// 意图不携带座位信息，发送者由连接绑定
type Intent interface {
	IntentType() string
	sealedIntent()
}

// ReadyIntent ready 缺省视为 true
type ReadyIntent struct {
	Ready *bool `json:"ready,omitempty"`
}

func (ReadyIntent) IntentType() string { return IntentPlayerReady }
func (ReadyIntent) sealedIntent()      {}

func (i ReadyIntent) IsReady() bool {
	return i.Ready == nil || *i.Ready
}

type UnitActionIntent struct {
	UnitID         string            `json:"unitId"`
	Type           string            `json:"type"`
	TargetPosition *tactics.Position `json:"targetPosition,omitempty"`
	TargetUnitID   string            `json:"targetUnitId,omitempty"`
}

func (UnitActionIntent) IntentType() string { return IntentUnitAction }
func (UnitActionIntent) sealedIntent()      {}

// Action 转成对局层的行动
func (i UnitActionIntent) Action() tactics.Action {
	return tactics.Action{
		UnitID:       i.UnitID,
		Type:         tactics.ActionType(i.Type),
		Target:       i.TargetPosition,
		TargetUnitID: i.TargetUnitID,
	}
}

type EndTurnIntent struct{}

func (EndTurnIntent) IntentType() string { return IntentEndTurn }
func (EndTurnIntent) sealedIntent()      {}

type ChatIntent struct {
	Text string `json:"text"`
}

func (ChatIntent) IntentType() string { return IntentChat }
func (ChatIntent) sealedIntent()      {}

type LeaveIntent struct{}

func (LeaveIntent) IntentType() string { return IntentLeave }
func (LeaveIntent) sealedIntent()      {}

// newIntent 按消息名创建空的意图，用于解码 data
func newIntent(kind string) (Intent, bool) {
	switch kind {
	case IntentPlayerReady:
		return &ReadyIntent{}, true
	case IntentUnitAction:
		return &UnitActionIntent{}, true
	case IntentEndTurn:
		return &EndTurnIntent{}, true
	case IntentChat:
		return &ChatIntent{}, true
	case IntentLeave:
		return &LeaveIntent{}, true
	}
	return nil, false
}

// deref 解码后统一返回值类型，房间 switch 不需要处理指针
func deref(intent Intent) Intent {
	switch v := intent.(type) {
	case *ReadyIntent:
		return *v
	case *UnitActionIntent:
		return *v
	case *EndTurnIntent:
		return *v
	case *ChatIntent:
		return *v
	case *LeaveIntent:
		return *v
	}
	return intent
}
