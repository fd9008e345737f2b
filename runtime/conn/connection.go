package conn

import (
	"sync"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"

	"github.com/gorilla/websocket"
)

var (
	pongWait             = 60 * time.Second
	writeWait            = 10 * time.Second
	pingInterval         = (pongWait * 9) / 10
	maxMessageSize int64 = 4096
)

type frame struct {
	messageType int
	data        []byte
}

// LongConnection 一条 websocket 长连接，绑定一个用户和一个房间
// 读协程把意图投递给房间，写协程是这条连接唯一的写者
type LongConnection struct {
	ConnID  string
	UserID  string
	MatchID string
	Conn    *websocket.Conn

	codec     share.Codec
	room      *game.Room
	worker    *Worker
	WriteChan chan frame
	closeChan chan struct{}
	closeOnce sync.Once
}

var _ game.Peer = (*LongConnection)(nil)

func newLongConnection(connID string, ws *websocket.Conn, codec share.Codec, room *game.Room, worker *Worker) *LongConnection {
	return &LongConnection{
		ConnID:    connID,
		MatchID:   room.ID,
		Conn:      ws,
		codec:     codec,
		room:      room,
		worker:    worker,
		WriteChan: make(chan frame, worker.writeBufferSize),
		closeChan: make(chan struct{}),
	}
}

func (con *LongConnection) ID() string {
	return con.ConnID
}

func (con *LongConnection) Run() {
	con.Conn.SetPongHandler(con.PongHandler)
	go con.readMessage()
	go con.writeMessage()
}

func (con *LongConnection) writeMessage() {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case message := <-con.WriteChan:
			if err := con.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				con.Close()
				return
			}
			if err := con.Conn.WriteMessage(message.messageType, message.data); err != nil {
				log.Debug("客户端[%s] 写消息失败: %v", con.ConnID, err)
				con.Close()
				return
			}
		case <-pingTicker.C:
			if err := con.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				con.Close()
				return
			}
			if err := con.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("客户端[%s] ping 失败: %v", con.ConnID, err)
				con.Close()
				return
			}
		case <-con.closeChan:
			return
		}
	}
}

func (con *LongConnection) readMessage() {
	defer func() {
		con.worker.removeClient(con)
		con.room.Disconnect(con.UserID, con.ConnID)
	}()

	con.Conn.SetReadLimit(maxMessageSize)
	if err := con.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error("SetReadDeadline err:%v", err)
		return
	}
	for {
		messageType, message, err := con.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("客户端[%s] 异常断开: %v", con.ConnID, err)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		con.handleMessage(message)
	}
}

// handleMessage 限流、解码后投递给房间，发送者由连接绑定的用户决定
func (con *LongConnection) handleMessage(message []byte) {
	if con.worker.messageLimiter != nil && !con.worker.messageLimiter.Allow(con.ConnID) {
		_ = con.Send(share.NewErrorEvent(dto.ErrRateLimited))
		return
	}
	intent, err := con.codec.DecodeIntent(message)
	if err != nil {
		log.Debug("客户端[%s] 消息解码失败: %v", con.ConnID, err)
		_ = con.Send(share.NewErrorEvent(err))
		return
	}
	if !con.room.NotifyIntent(con.UserID, con.ConnID, intent) {
		log.Warn("客户端[%s] 房间 %s 未接收意图 %s", con.ConnID, con.MatchID, intent.IntentType())
	}
}

func (con *LongConnection) PongHandler(string) error {
	return con.Conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (con *LongConnection) encode(event share.Event) (frame, error) {
	data, err := con.codec.EncodeEvent(event)
	if err != nil {
		return frame{}, err
	}
	messageType := websocket.TextMessage
	if con.codec.Binary() {
		messageType = websocket.BinaryMessage
	}
	return frame{messageType: messageType, data: data}, nil
}

// Send 不阻塞；写队列满说明客户端读得太慢，直接断开
func (con *LongConnection) Send(event share.Event) error {
	select {
	case <-con.closeChan:
		return dto.ErrConnectionClosed
	default:
	}
	message, err := con.encode(event)
	if err != nil {
		return err
	}
	select {
	case con.WriteChan <- message:
		return nil
	default:
		log.Warn("客户端[%s] 写队列已满，断开慢连接", con.ConnID)
		con.Close()
		return dto.ErrSendChanFull
	}
}

// reject 入座失败：直接写错误和关闭帧，此时读写协程还没启动
func (con *LongConnection) reject(err error) {
	if message, encodeErr := con.encode(share.NewErrorEvent(err)); encodeErr == nil {
		_ = con.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = con.Conn.WriteMessage(message.messageType, message.data)
	}
	closeMessage := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, dto.Code(err))
	_ = con.Conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait))
	con.Close()
}

func (con *LongConnection) Close() {
	con.closeOnce.Do(func() {
		close(con.closeChan)
		if con.Conn != nil {
			_ = con.Conn.Close()
		}
		if con.worker.messageLimiter != nil {
			con.worker.messageLimiter.Forget(con.ConnID)
		}
		log.Debug("客户端[%s] 连接关闭", con.ConnID)
	})
}
