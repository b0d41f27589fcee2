package usecase

import (
	"context"
	"fmt"

	"github.com/ndthang0000/bau-cua-server/internal/metrics"
	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// BetReceipt acknowledges a placed bet to its caller.
type BetReceipt struct {
	BetID   string      `json:"betId"`
	Door    domain.Door `json:"door"`
	Amount  int64       `json:"amount"`
	Balance int64       `json:"balance"`
}

// BatchReceipt acknowledges a batch placement: one debit, one bet per door.
type BatchReceipt struct {
	BetIDs  map[domain.Door]string `json:"betIds"`
	Amount  int64                  `json:"amountPerDoor"`
	Balance int64                  `json:"balance"`
}

// betUpdatePayload is broadcast to the room after a successful placement.
type betUpdatePayload struct {
	MemberID  string                `json:"memberId"`
	Doors     []domain.Door         `json:"doors"`
	Amount    int64                 `json:"amount"`
	Balance   int64                 `json:"balance"`
	TotalBets map[domain.Door]int64 `json:"totalBets"`
}

// betCanceledPayload is broadcast after a successful cancellation.
type betCanceledPayload struct {
	MemberID  string                `json:"memberId"`
	BetID     string                `json:"betId"`
	Door      domain.Door           `json:"door"`
	Amount    int64                 `json:"amount"`
	Balance   int64                 `json:"balance"`
	TotalBets map[domain.Door]int64 `json:"totalBets"`
}

// gateBet resolves the placement preconditions shared by single and batch
// bets, before any mutation.
func (uc *RoomUseCase) gateBet(room *domain.Room, memberID string) (*domain.Member, error) {
	if room.Status != domain.StatusBetting {
		return nil, fmt.Errorf("%w: bets are only accepted while betting, room is %s", domain.ErrWrongState, room.Status)
	}
	m := room.FindMember(memberID)
	if m == nil {
		return nil, fmt.Errorf("%w: member %s not in room %s", domain.ErrNotFound, memberID, room.RoomID)
	}
	if room.IsDealer(memberID) && !room.Config.DealerCanBet {
		return nil, fmt.Errorf("%w: the dealer cannot place bets", domain.ErrWrongState)
	}
	return m, nil
}

func (uc *RoomUseCase) validateAmount(room *domain.Room, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: bet amount must be positive", domain.ErrValidation)
	}
	if amount < room.Config.MinBet || amount > room.Config.MaxBet {
		return fmt.Errorf("%w: bet amount must be between %d and %d", domain.ErrValidation, room.Config.MinBet, room.Config.MaxBet)
	}
	return nil
}

// PlaceBet validates and records one wager: debit, pending bet and door
// total move together or not at all.
func (uc *RoomUseCase) PlaceBet(ctx context.Context, roomID, memberID string, door domain.Door, amount int64) (*BetReceipt, error) {
	var receipt *BetReceipt
	var savedBetID string

	err := uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		member, err := uc.gateBet(room, memberID)
		if err != nil {
			return err
		}
		if !door.IsValid() {
			return fmt.Errorf("%w: unknown door %q", domain.ErrValidation, door)
		}
		if err := uc.validateAmount(room, amount); err != nil {
			return err
		}
		if member.Balance < amount {
			return fmt.Errorf("%w: balance %d is below bet amount %d", domain.ErrValidation, member.Balance, amount)
		}

		bet := domain.NewBet(room.RoomID, room.CurrentRoundID(), memberID, door, amount)
		if err := uc.bets.Save(ctx, bet); err != nil {
			return fmt.Errorf("%w: save bet: %v", domain.ErrSystem, err)
		}
		savedBetID = bet.BetID

		member.Balance -= amount
		room.AddTotal(door, amount)

		receipt = &BetReceipt{BetID: bet.BetID, Door: door, Amount: amount, Balance: member.Balance}
		ev.broadcast(domain.EventBetUpdate, betUpdatePayload{
			MemberID:  memberID,
			Doors:     []domain.Door{door},
			Amount:    amount,
			Balance:   member.Balance,
			TotalBets: room.TotalBets,
		})
		return nil
	})
	if err != nil {
		if savedBetID != "" {
			// Room commit failed after the bet was recorded; take the
			// pending bet back out so no orphan reaches settlement.
			_ = uc.bets.Delete(ctx, roomID, savedBetID)
		}
		metrics.RecordBet("fail", "single")
		return nil, err
	}

	metrics.RecordBet("success", "single")
	logger.Debug(ctx).
		Str("room_id", roomID).
		Str("member_id", memberID).
		Str("door", string(door)).
		Int64("amount", amount).
		Msg("bet placed")
	return receipt, nil
}

// PlaceBetBatch places one bet per door with a single debit of totalAmount.
// Either every door is recorded and the debit applied, or nothing is.
func (uc *RoomUseCase) PlaceBetBatch(ctx context.Context, roomID, memberID string, doors []domain.Door, amountPerDoor, totalAmount int64) (*BatchReceipt, error) {
	var receipt *BatchReceipt
	var savedBetIDs []string

	err := uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		member, err := uc.gateBet(room, memberID)
		if err != nil {
			return err
		}
		if len(doors) == 0 {
			return fmt.Errorf("%w: batch has no doors", domain.ErrValidation)
		}
		seen := make(map[domain.Door]bool, len(doors))
		for _, door := range doors {
			if !door.IsValid() {
				return fmt.Errorf("%w: unknown door %q", domain.ErrValidation, door)
			}
			if seen[door] {
				return fmt.Errorf("%w: door %q repeated in batch", domain.ErrValidation, door)
			}
			seen[door] = true
		}
		if err := uc.validateAmount(room, amountPerDoor); err != nil {
			return err
		}
		if totalAmount != amountPerDoor*int64(len(doors)) {
			return fmt.Errorf("%w: total %d does not match %d per door across %d doors", domain.ErrValidation, totalAmount, amountPerDoor, len(doors))
		}
		if member.Balance < totalAmount {
			return fmt.Errorf("%w: balance %d is below batch total %d", domain.ErrValidation, member.Balance, totalAmount)
		}

		roundID := room.CurrentRoundID()
		betIDs := make(map[domain.Door]string, len(doors))
		for _, door := range doors {
			bet := domain.NewBet(room.RoomID, roundID, memberID, door, amountPerDoor)
			if err := uc.bets.Save(ctx, bet); err != nil {
				return fmt.Errorf("%w: save batch bet: %v", domain.ErrSystem, err)
			}
			savedBetIDs = append(savedBetIDs, bet.BetID)
			betIDs[door] = bet.BetID
		}

		member.Balance -= totalAmount
		for _, door := range doors {
			room.AddTotal(door, amountPerDoor)
		}

		receipt = &BatchReceipt{BetIDs: betIDs, Amount: amountPerDoor, Balance: member.Balance}
		ev.broadcast(domain.EventBetUpdate, betUpdatePayload{
			MemberID:  memberID,
			Doors:     doors,
			Amount:    amountPerDoor,
			Balance:   member.Balance,
			TotalBets: room.TotalBets,
		})
		return nil
	})
	if err != nil {
		for _, betID := range savedBetIDs {
			_ = uc.bets.Delete(ctx, roomID, betID)
		}
		metrics.RecordBet("fail", "batch")
		return nil, err
	}

	metrics.RecordBet("success", "batch")
	logger.Debug(ctx).
		Str("room_id", roomID).
		Str("member_id", memberID).
		Int("doors", len(doors)).
		Int64("total", totalAmount).
		Msg("batch bet placed")
	return receipt, nil
}

// CancelBet refunds and deletes a pending bet while the betting window is
// still open. Only the bet's owner may cancel it.
func (uc *RoomUseCase) CancelBet(ctx context.Context, roomID, memberID, betID string) (int64, error) {
	var balance int64
	var removed *domain.Bet

	err := uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if room.Status != domain.StatusBetting {
			return fmt.Errorf("%w: cancellation closes with the betting window, room is %s", domain.ErrWrongState, room.Status)
		}

		bet, err := uc.bets.Get(ctx, roomID, betID)
		if err != nil {
			return fmt.Errorf("%w: load bet: %v", domain.ErrSystem, err)
		}
		if bet == nil {
			return fmt.Errorf("%w: bet %s", domain.ErrNotFound, betID)
		}
		if bet.MemberID != memberID {
			return fmt.Errorf("%w: bet %s belongs to another member", domain.ErrNotAuthorized, betID)
		}
		if bet.Status != domain.BetStatusPending {
			return fmt.Errorf("%w: bet %s is already %s", domain.ErrWrongState, betID, bet.Status)
		}

		member := room.FindMember(memberID)
		if member == nil {
			return fmt.Errorf("%w: member %s not in room %s", domain.ErrNotFound, memberID, roomID)
		}

		if err := uc.bets.Delete(ctx, roomID, betID); err != nil {
			return fmt.Errorf("%w: delete bet: %v", domain.ErrSystem, err)
		}
		removed = bet

		member.Balance += bet.Amount
		room.SubTotal(bet.Door, bet.Amount)
		balance = member.Balance

		ev.broadcast(domain.EventBetCanceled, betCanceledPayload{
			MemberID:  memberID,
			BetID:     betID,
			Door:      bet.Door,
			Amount:    bet.Amount,
			Balance:   member.Balance,
			TotalBets: room.TotalBets,
		})
		return nil
	})
	if err != nil {
		if removed != nil {
			// Refund did not commit; restore the pending bet.
			_ = uc.bets.Save(ctx, removed)
		}
		metrics.RecordBet("fail", "cancel")
		return 0, err
	}

	metrics.RecordBet("success", "cancel")
	logger.Debug(ctx).
		Str("room_id", roomID).
		Str("member_id", memberID).
		Str("bet_id", betID).
		Msg("bet canceled")
	return balance, nil
}

// BetHistoryPage is one page of settled orders.
type BetHistoryPage struct {
	Orders     []*domain.BetOrder `json:"orders"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

// BetHistory queries settled orders with optional member/round filters.
func (uc *RoomUseCase) BetHistory(ctx context.Context, q domain.BetOrderQuery) (*BetHistoryPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}

	if uc.orders == nil {
		return &BetHistoryPage{Orders: []*domain.BetOrder{}, Page: q.Page, PageSize: q.PageSize}, nil
	}

	orders, total, err := uc.orders.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list bet orders: %v", domain.ErrSystem, err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &BetHistoryPage{
		Orders:     orders,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}
