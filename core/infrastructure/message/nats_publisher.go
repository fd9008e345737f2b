package message

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	"github.com/nats-io/nats.go"
)

// MatchEvent 对局生命周期事件，发往 <prefix>.<matchID>.<kind>
type MatchEvent struct {
	MatchID   string `json:"matchId"`
	Kind      string `json:"kind"`
	Payload   any    `json:"payload,omitempty"`
	NodeID    string `json:"nodeId"`
	Timestamp int64  `json:"timestamp"`
}

// NatsPublisher 异步发布，写协程串行发送，队列满时丢弃并告警
type NatsPublisher struct {
	conn      *nats.Conn
	prefix    string
	nodeID    string
	writeChan chan *MatchEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewNatsPublisher(url, prefix, nodeID string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("tbs-room-"+nodeID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats 连接断开: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats 重连成功: %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接 nats 失败: %w", err)
	}
	p := &NatsPublisher{
		conn:      conn,
		prefix:    prefix,
		nodeID:    nodeID,
		writeChan: make(chan *MatchEvent, 1024),
		done:      make(chan struct{}),
	}
	p.wg.Add(1)
	go p.writeChanMessage()
	return p, nil
}

func Subject(prefix, matchID, kind string) string {
	return prefix + "." + matchID + "." + kind
}

func (p *NatsPublisher) Publish(matchID, kind string, payload any) {
	event := &MatchEvent{
		MatchID:   matchID,
		Kind:      kind,
		Payload:   payload,
		NodeID:    p.nodeID,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case <-p.done:
	case p.writeChan <- event:
	default:
		log.Warn("nats 发布队列已满，丢弃事件 %s/%s", matchID, kind)
	}
}

func (p *NatsPublisher) writeChanMessage() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.writeChan:
			p.send(event)
		case <-p.done:
			// 退出前把队列里剩余的发完
			for {
				select {
				case event := <-p.writeChan:
					p.send(event)
				default:
					return
				}
			}
		}
	}
}

func (p *NatsPublisher) send(event *MatchEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		log.Error("nats 事件序列化失败: %v", err)
		return
	}
	if err := p.conn.Publish(Subject(p.prefix, event.MatchID, event.Kind), raw); err != nil {
		log.Error("nats 发送错误, event: %s/%s, err: %v", event.MatchID, event.Kind, err)
	}
}

func (p *NatsPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	})
}
