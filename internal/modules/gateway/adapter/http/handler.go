// Package http upgrades client connections and feeds frames to the gateway
// use case.
package http

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ndthang0000/bau-cua-server/internal/modules/gateway/usecase"
	"github.com/ndthang0000/bau-cua-server/internal/modules/gateway/ws"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// Handler handles the websocket endpoint.
type Handler struct {
	useCase *usecase.GatewayUseCase
	manager *ws.Manager
}

// NewHandler creates a new websocket handler.
func NewHandler(useCase *usecase.GatewayUseCase, manager *ws.Manager) *Handler {
	return &Handler{
		useCase: useCase,
		manager: manager,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the request and runs the connection's pumps
// until it drops.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WebSocketContext(r)
	requestID := logger.GetRequestID(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("websocket upgrade failed")
		return
	}

	client := h.manager.Register(conn)
	logger.Info(ctx).
		Str("conn_id", client.ConnID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(
		func(c *ws.Connection, message []byte) {
			msgCtx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
			msgCtx = logger.WithFields(msgCtx, map[string]interface{}{
				"conn_id":       c.ConnID,
				"ws_request_id": requestID,
			})

			if resp := h.useCase.HandleMessage(msgCtx, c, message); resp != nil {
				c.SendDirect(resp)
			}
		},
		func(c *ws.Connection) {
			h.useCase.HandleDisconnect(context.Background(), c)
		},
	)
}
