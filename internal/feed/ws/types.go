package ws

import (
	"encoding/json"
)

const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPing        = "ping"
	OpPong        = "pong"

	TypeSnapshot = "snapshot"
)

type Message struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

type SubscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type Response struct {
	Op      string   `json:"op"`
	Success bool     `json:"success"`
	RetMsg  string   `json:"ret_msg,omitempty"`
	Args    []string `json:"args,omitempty"`
}
