package dto

import "errors"

// 连接相关错误
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendChanFull     = errors.New("send channel full")
	ErrRateLimited      = errors.New("rate limited")
)

// 鉴权与入座
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrGameInProgress         = errors.New("game already in progress")
	ErrRoomFull               = errors.New("room is full")
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomClosed             = errors.New("room closed")
	ErrRoomExists             = errors.New("room already exists")
)

// 对局规则
var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrInvalidUnit   = errors.New("invalid unit")
	ErrInvalidTarget = errors.New("invalid target")
	ErrNotReady      = errors.New("not all players are ready")
	ErrSeatNotFound  = errors.New("seat not found")
)

// 消息相关错误
var (
	ErrInvalidMessage   = errors.New("invalid message")
	ErrMessageMarshal   = errors.New("message marshal error")
	ErrMessageUnmarshal = errors.New("message unmarshal error")
)

// 持久化，都是可恢复的
var (
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrDeserializationFailure = errors.New("deserialization failure")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrAuthenticationRequired, "AuthenticationRequired"},
	{ErrGameInProgress, "GameInProgress"},
	{ErrNotYourTurn, "NotYourTurn"},
	{ErrInvalidUnit, "InvalidUnit"},
	{ErrPersistenceFailure, "PersistenceFailure"},
	{ErrDeserializationFailure, "DeserializationFailure"},
	{ErrInvalidTarget, "InvalidTarget"},
	{ErrRoomFull, "RoomFull"},
	{ErrNotReady, "NotReady"},
	{ErrInvalidMessage, "InvalidMessage"},
	{ErrMessageUnmarshal, "InvalidMessage"},
	{ErrRateLimited, "RateLimited"},
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrRoomClosed, "RoomClosed"},
	{ErrRoomExists, "RoomExists"},
	{ErrSeatNotFound, "SeatNotFound"},
}

// Code 错误对应的线上错误码，未知错误归为 Internal
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
