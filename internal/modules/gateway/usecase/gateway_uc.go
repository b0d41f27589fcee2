// Package usecase dispatches inbound websocket commands to the game.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	baucua "github.com/ndthang0000/bau-cua-server/internal/modules/baucua/usecase"
	"github.com/ndthang0000/bau-cua-server/internal/modules/gateway/ws"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// GatewayUseCase routes client commands to the room use case and shapes the
// responses back into the wire envelope.
type GatewayUseCase struct {
	room    *baucua.RoomUseCase
	manager *ws.Manager
}

// NewGatewayUseCase creates a new gateway use case.
func NewGatewayUseCase(room *baucua.RoomUseCase, manager *ws.Manager) *GatewayUseCase {
	return &GatewayUseCase{room: room, manager: manager}
}

// RequestEnvelope is the inbound message frame.
type RequestEnvelope struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

type responseEnvelope struct {
	Command string      `json:"command"`
	Data    interface{} `json:"data"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

func respond(command string, data interface{}) []byte {
	msg, err := json.Marshal(responseEnvelope{Command: command, Data: data})
	if err != nil {
		return nil
	}
	return msg
}

func respondError(command string, err error) []byte {
	return respond(domain.EventErrorMsg, errorPayload{
		Code:    domain.ErrorCode(err),
		Message: err.Error(),
		Source:  command,
	})
}

// HandleMessage decodes one inbound frame, runs the command and returns the
// response frame, or an error_msg frame on failure. A nil return means
// nothing to send.
func (uc *GatewayUseCase) HandleMessage(ctx context.Context, c *ws.Connection, message []byte) []byte {
	var req RequestEnvelope
	if err := json.Unmarshal(message, &req); err != nil {
		return respondError("", fmt.Errorf("%w: invalid message format", domain.ErrValidation))
	}
	if req.Command == "" {
		return respondError("", fmt.Errorf("%w: missing command", domain.ErrValidation))
	}

	resp, err := uc.dispatch(ctx, c, req.Command, req.Data)
	if err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("command", req.Command).
			Str("room_id", c.RoomID).
			Str("member_id", c.MemberID).
			Msg("command failed")
		return respondError(req.Command, err)
	}
	return resp
}

func (uc *GatewayUseCase) dispatch(ctx context.Context, c *ws.Connection, command string, data []byte) ([]byte, error) {
	switch command {
	case "join_room":
		return uc.handleJoin(ctx, c, data)
	case "leave_room":
		return uc.handleLeave(ctx, c)
	case "get_rooms_info":
		return uc.handleRoomsInfo(ctx, data)
	case "get_room":
		return uc.handleGetRoom(ctx, c)
	case "start_round":
		return nil, uc.withBind(c, func() error {
			return uc.room.StartRound(ctx, c.RoomID, c.MemberID)
		})
	case "start_shake":
		return nil, uc.withBind(c, func() error {
			return uc.room.ManualShake(ctx, c.RoomID, c.MemberID)
		})
	case "open_bowl":
		return nil, uc.withBind(c, func() error {
			return uc.room.ManualReveal(ctx, c.RoomID, c.MemberID)
		})
	case "next_round":
		return nil, uc.withBind(c, func() error {
			return uc.room.ManualNextRound(ctx, c.RoomID, c.MemberID)
		})
	case "place_bet":
		return uc.handlePlaceBet(ctx, c, data)
	case "place_bet_batch":
		return uc.handlePlaceBetBatch(ctx, c, data)
	case "cancel_bet":
		return uc.handleCancelBet(ctx, c, data)
	case "bet_history":
		return uc.handleBetHistory(ctx, c, data)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", domain.ErrValidation, command)
	}
}

// withBind rejects commands that require room membership on an unbound
// connection.
func (uc *GatewayUseCase) withBind(c *ws.Connection, fn func() error) error {
	if c.RoomID == "" {
		return fmt.Errorf("%w: join a room first", domain.ErrWrongState)
	}
	return fn()
}

type joinPayload struct {
	RoomID string               `json:"roomId"`
	Member baucua.MemberProfile `json:"member"`
	Config *domain.Config       `json:"config"`
}

func (uc *GatewayUseCase) handleJoin(ctx context.Context, c *ws.Connection, data []byte) ([]byte, error) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid join payload", domain.ErrValidation)
	}
	if p.RoomID == "" || p.Member.MemberID == "" {
		return nil, fmt.Errorf("%w: roomId and member.id are required", domain.ErrValidation)
	}

	// Bind before joining so the join's own room_update reaches this
	// connection; unbind again when the join is rejected.
	uc.manager.Bind(c, p.RoomID, p.Member.MemberID)
	view, err := uc.room.Join(ctx, p.RoomID, c.ConnID, p.Member, p.Config)
	if err != nil {
		uc.manager.Unbind(c)
		c.RoomID = ""
		c.MemberID = ""
		return nil, err
	}
	return respond("join_room_rsp", view), nil
}

func (uc *GatewayUseCase) handleLeave(ctx context.Context, c *ws.Connection) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("%w: not in a room", domain.ErrWrongState)
	}
	roomID, memberID := c.RoomID, c.MemberID
	uc.manager.Unbind(c)
	c.RoomID = ""
	c.MemberID = ""

	if err := uc.room.MarkOffline(ctx, roomID, memberID); err != nil {
		return nil, err
	}
	return respond("leave_room_rsp", map[string]string{"roomId": roomID}), nil
}

type roomsInfoPayload struct {
	RoomIDs []string `json:"roomIds"`
}

func (uc *GatewayUseCase) handleRoomsInfo(ctx context.Context, data []byte) ([]byte, error) {
	var p roomsInfoPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid get_rooms_info payload", domain.ErrValidation)
	}
	infos, err := uc.room.RoomsInfo(ctx, p.RoomIDs)
	if err != nil {
		return nil, err
	}
	return respond("get_rooms_info_rsp", infos), nil
}

func (uc *GatewayUseCase) handleGetRoom(ctx context.Context, c *ws.Connection) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("%w: join a room first", domain.ErrWrongState)
	}
	view, err := uc.room.GetRoomView(ctx, c.RoomID)
	if err != nil {
		return nil, err
	}
	return respond("get_room_rsp", view), nil
}

type placeBetPayload struct {
	Door   domain.Door `json:"door"`
	Amount int64       `json:"amount"`
}

func (uc *GatewayUseCase) handlePlaceBet(ctx context.Context, c *ws.Connection, data []byte) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("%w: join a room first", domain.ErrWrongState)
	}
	var p placeBetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid place_bet payload", domain.ErrValidation)
	}
	receipt, err := uc.room.PlaceBet(ctx, c.RoomID, c.MemberID, p.Door, p.Amount)
	if err != nil {
		return nil, err
	}
	return respond("place_bet_rsp", receipt), nil
}

type placeBetBatchPayload struct {
	Doors         []domain.Door `json:"doors"`
	AmountPerDoor int64         `json:"amountPerDoor"`
	TotalAmount   int64         `json:"totalAmount"`
}

func (uc *GatewayUseCase) handlePlaceBetBatch(ctx context.Context, c *ws.Connection, data []byte) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("%w: join a room first", domain.ErrWrongState)
	}
	var p placeBetBatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid place_bet_batch payload", domain.ErrValidation)
	}
	receipt, err := uc.room.PlaceBetBatch(ctx, c.RoomID, c.MemberID, p.Doors, p.AmountPerDoor, p.TotalAmount)
	if err != nil {
		return nil, err
	}
	return respond("place_bet_batch_rsp", receipt), nil
}

type cancelBetPayload struct {
	BetID string `json:"betId"`
}

func (uc *GatewayUseCase) handleCancelBet(ctx context.Context, c *ws.Connection, data []byte) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("%w: join a room first", domain.ErrWrongState)
	}
	var p cancelBetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid cancel_bet payload", domain.ErrValidation)
	}
	balance, err := uc.room.CancelBet(ctx, c.RoomID, c.MemberID, p.BetID)
	if err != nil {
		return nil, err
	}
	return respond("cancel_bet_rsp", map[string]interface{}{
		"betId":   p.BetID,
		"balance": balance,
	}), nil
}

type betHistoryPayload struct {
	RoundID  int `json:"roundId"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func (uc *GatewayUseCase) handleBetHistory(ctx context.Context, c *ws.Connection, data []byte) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("%w: join a room first", domain.ErrWrongState)
	}
	var p betHistoryPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid bet_history payload", domain.ErrValidation)
		}
	}
	page, err := uc.room.BetHistory(ctx, domain.BetOrderQuery{
		RoomID:   c.RoomID,
		MemberID: c.MemberID,
		RoundID:  p.RoundID,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return respond("bet_history_rsp", page), nil
}

// HandleDisconnect marks the member offline when its current connection
// drops without an explicit leave.
func (uc *GatewayUseCase) HandleDisconnect(ctx context.Context, c *ws.Connection) {
	if !uc.manager.Unregister(c) {
		return
	}
	if c.RoomID == "" {
		return
	}
	if err := uc.room.MarkOffline(ctx, c.RoomID, c.MemberID); err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("room_id", c.RoomID).
			Str("member_id", c.MemberID).
			Msg("mark offline on disconnect")
	}
}
