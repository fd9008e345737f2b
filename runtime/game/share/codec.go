package share

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec 线上格式：{"type": 消息名, "data": {...}}
type Codec interface {
	Name() string
	// Binary 决定 websocket 用二进制帧还是文本帧
	Binary() bool
	EncodeEvent(event Event) ([]byte, error)
	DecodeIntent(raw []byte) (Intent, error)
}

// CodecByName 未知名字退回 JSON
func CodecByName(name string) Codec {
	if name == CodecMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

type outbound struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) EncodeEvent(event Event) ([]byte, error) {
	raw, err := json.Marshal(outbound{Type: event.EventType(), Data: event})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrMessageMarshal, err)
	}
	return raw, nil
}

func (JSONCodec) DecodeIntent(raw []byte) (Intent, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrMessageUnmarshal, err)
	}
	intent, ok := newIntent(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", dto.ErrInvalidMessage, env.Type)
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, intent); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", dto.ErrMessageUnmarshal, env.Type, err)
		}
	}
	return deref(intent), nil
}

// MsgpackCodec 复用 json tag，字段名和 JSON 一致
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) EncodeEvent(event Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(outbound{Type: event.EventType(), Data: event}); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrMessageMarshal, err)
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) DecodeIntent(raw []byte) (Intent, error) {
	var env struct {
		Type string             `json:"type"`
		Data msgpack.RawMessage `json:"data"`
	}
	if err := newMsgpackDecoder(raw).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrMessageUnmarshal, err)
	}
	intent, ok := newIntent(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", dto.ErrInvalidMessage, env.Type)
	}
	// 0xc0 是 msgpack 的 nil
	if len(env.Data) > 0 && !(len(env.Data) == 1 && env.Data[0] == 0xc0) {
		if err := newMsgpackDecoder(env.Data).Decode(intent); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", dto.ErrMessageUnmarshal, env.Type, err)
		}
	}
	return deref(intent), nil
}

func newMsgpackDecoder(raw []byte) *msgpack.Decoder {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	return dec
}

// NewErrorEvent 错误转成带错误码的推送
func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Message: err.Error(), Code: dto.Code(err)}
}
