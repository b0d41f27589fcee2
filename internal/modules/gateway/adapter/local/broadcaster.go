// Package local adapts the websocket manager to the game's broadcaster
// port.
package local

import (
	"context"
	"encoding/json"

	"github.com/ndthang0000/bau-cua-server/internal/modules/gateway/ws"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// Broadcaster serializes game events into the wire envelope and pushes them
// through the connection manager.
type Broadcaster struct {
	manager *ws.Manager
}

func NewBroadcaster(manager *ws.Manager) *Broadcaster {
	return &Broadcaster{manager: manager}
}

// envelope is the outbound message frame: the event name plus its payload.
type envelope struct {
	Command string      `json:"command"`
	Data    interface{} `json:"data"`
}

func marshalEvent(event string, data interface{}) []byte {
	msg, err := json.Marshal(envelope{Command: event, Data: data})
	if err != nil {
		logger.Error(context.Background()).
			Err(err).
			Str("event", event).
			Msg("marshal event")
		return nil
	}
	return msg
}

func (b *Broadcaster) BroadcastRoom(roomID string, event string, data interface{}) {
	if msg := marshalEvent(event, data); msg != nil {
		b.manager.BroadcastRoom(roomID, msg)
	}
}

func (b *Broadcaster) SendToMember(roomID, memberID string, event string, data interface{}) {
	if msg := marshalEvent(event, data); msg != nil {
		b.manager.SendToMember(roomID, memberID, msg)
	}
}
