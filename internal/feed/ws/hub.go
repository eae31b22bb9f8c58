package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"vaultsim/internal/feed"
	"vaultsim/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
	readLimit  = 64 << 10
)

type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	retained map[feed.Topic][]byte
	closed   bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:  make(map[*client]struct{}),
		retained: make(map[feed.Topic][]byte),
	}
}

func (h *Hub) Publish(e feed.Event) {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		h.logEntry().WithError(err).WithField("topic", e.Topic).Warn("Не удалось сериализовать событие.")
		return
	}
	msg, err := json.Marshal(Message{
		Topic: string(e.Topic),
		Type:  TypeSnapshot,
		TS:    e.Time.UnixMilli(),
		Data:  data,
	})
	if err != nil {
		h.logEntry().WithError(err).WithField("topic", e.Topic).Warn("Не удалось сериализовать сообщение.")
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.retained[e.Topic] = msg
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribed(e.Topic) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			h.logEntry().Warn("Клиент WS не успевает читать, соединение закрыто.")
			h.remove(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logEntry().WithError(err).Warn("Не удалось установить WS соединение.")
		return
	}

	c := newClient(h, conn)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logEntry().WithField("remote", r.RemoteAddr).Info("WS клиент подключён.")

	go c.writeLoop()
	c.readLoop()
}

func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) replay(c *client, topics []feed.Topic) {
	h.mu.RLock()
	msgs := make([][]byte, 0, len(topics))
	for _, t := range topics {
		if msg, ok := h.retained[t]; ok {
			msgs = append(msgs, msg)
		}
	}
	h.mu.RUnlock()

	for _, msg := range msgs {
		if !c.enqueue(msg) {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) logEntry() *logrus.Entry {
	return h.log.WithComponent("ws_hub")
}
