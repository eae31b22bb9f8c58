package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vaultsim/internal/feed"
)

var errNoTopics = errors.New("Не указаны топики.")

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	topics map[feed.Topic]struct{}

	stopCh    chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[feed.Topic]struct{}),
		stopCh: make(chan struct{}),
	}
}

func (c *client) subscribed(t feed.Topic) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[t]
	return ok
}

func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.stopCh:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		_ = c.conn.Close()
	})
}

func (c *client) readLoop() {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logEntry().WithError(err).Warn("Ошибка чтения WS.")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var req SubscribeMessage
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(Response{Op: "", Success: false, RetMsg: "Не удалось разобрать запрос."})
			continue
		}

		switch req.Op {
		case OpSubscribe:
			topics, err := parseTopics(req.Args)
			if err != nil {
				c.reply(Response{Op: req.Op, Success: false, RetMsg: err.Error(), Args: req.Args})
				continue
			}
			c.mu.Lock()
			for _, t := range topics {
				c.topics[t] = struct{}{}
			}
			c.mu.Unlock()
			c.reply(Response{Op: req.Op, Success: true, Args: req.Args})
			c.hub.replay(c, topics)
		case OpUnsubscribe:
			topics, err := parseTopics(req.Args)
			if err != nil {
				c.reply(Response{Op: req.Op, Success: false, RetMsg: err.Error(), Args: req.Args})
				continue
			}
			c.mu.Lock()
			for _, t := range topics {
				delete(c.topics, t)
			}
			c.mu.Unlock()
			c.reply(Response{Op: req.Op, Success: true, Args: req.Args})
		case OpPing:
			c.reply(Response{Op: OpPong, Success: true})
		default:
			c.reply(Response{Op: req.Op, Success: false, RetMsg: "Неизвестная операция."})
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.remove(c)
				return
			}
		}
	}
}

func (c *client) reply(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if !c.enqueue(data) {
		c.hub.remove(c)
	}
}

func parseTopics(args []string) ([]feed.Topic, error) {
	if len(args) == 0 {
		return nil, errNoTopics
	}
	topics := make([]feed.Topic, 0, len(args))
	for _, arg := range args {
		if arg == "*" {
			return append([]feed.Topic(nil), feed.Topics...), nil
		}
		t, ok := feed.ParseTopic(arg)
		if !ok {
			return nil, fmt.Errorf("Неизвестный топик %q.", arg)
		}
		topics = append(topics, t)
	}
	return topics, nil
}
