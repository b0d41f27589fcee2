package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ndthang0000/bau-cua-server/internal/metrics"
	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// gameResultPayload is the room-wide round outcome.
type gameResultPayload struct {
	RoundID  int           `json:"roundId"`
	Result   []domain.Door `json:"result"`
	TotalPot int64         `json:"totalPot"`
}

// settleReport is the per-member outcome sent to each bettor.
type settleReport struct {
	RoundID  int           `json:"roundId"`
	Result   []domain.Door `json:"result"`
	TotalBet int64         `json:"totalBet"`
	TotalWin int64         `json:"totalWin"`
	Balance  int64         `json:"balance"`
}

// dealerPayload announces a banker seat change.
type dealerPayload struct {
	MemberID   string `json:"memberId"`
	Nickname   string `json:"nickname"`
	RoundsLeft int    `json:"roundsLeft"`
}

// settle closes the current round: pops every pending bet exactly once,
// computes payouts from the rolled result, credits winners, charges the
// dealer the table's net payout, and appends the round record. Popping the
// bets is what makes a re-run for the same round a no-op. The popped bets
// are written to taken so the caller can restore them when the room does
// not commit. The caller holds the room handle.
func (uc *RoomUseCase) settle(ctx context.Context, room *domain.Room, ev *events, taken *[]*domain.Bet) error {
	started := time.Now()
	roundID := room.CurrentRoundID()
	result := uc.roll()

	bets, err := uc.bets.TakeForSettlement(ctx, room.RoomID, roundID)
	if err != nil {
		return fmt.Errorf("%w: load bets for settlement: %v", domain.ErrSystem, err)
	}
	*taken = bets

	totalPot := room.TotalPot()
	now := time.Now()

	type report struct {
		totalBet int64
		totalWin int64
	}
	reports := make(map[string]*report)
	orders := make([]*domain.BetOrder, 0, len(bets))

	for _, bet := range bets {
		if mc := result.MatchCount(bet.Door); mc > 0 {
			bet.Status = domain.BetStatusWin
			bet.WinAmount = domain.WinAmount(bet.Amount, mc)
		} else {
			bet.Status = domain.BetStatusLose
			bet.WinAmount = 0
		}

		r := reports[bet.MemberID]
		if r == nil {
			r = &report{}
			reports[bet.MemberID] = r
		}
		r.totalBet += bet.Amount
		r.totalWin += bet.WinAmount

		orders = append(orders, domain.NewBetOrder(bet, now))
	}

	// Persist the settled orders and round record before touching any
	// balance: a storage failure surfaces as a system error, the room is
	// not committed, and the auto loop halts in the last durable state.
	if uc.orders != nil && len(orders) > 0 {
		if err := uc.orders.BatchCreate(ctx, orders); err != nil {
			return fmt.Errorf("%w: persist bet orders: %v", domain.ErrSystem, err)
		}
	}
	rec := domain.RoundRecord{RoundID: roundID, Result: result, TotalPot: totalPot, Time: now}
	if uc.rounds != nil {
		if err := uc.rounds.Create(ctx, room.RoomID, rec); err != nil {
			return fmt.Errorf("%w: persist round record: %v", domain.ErrSystem, err)
		}
	}

	var netPlayers int64
	for memberID, r := range reports {
		m := room.FindMember(memberID)
		if m == nil {
			// Member removed entirely; their stake stays with the table.
			continue
		}
		m.Balance += r.totalWin
		netPlayers += r.totalWin - r.totalBet
	}

	// The dealer is the table's counterparty: the round is zero-sum. The
	// dealer's balance may go negative here; non-negativity gates only
	// requested debits.
	if dealer := room.FindMember(room.CurrentDealer.MemberID); dealer != nil {
		dealer.Balance -= netPlayers
	}

	for memberID, r := range reports {
		m := room.FindMember(memberID)
		if m == nil {
			continue
		}
		ev.toMember(memberID, domain.EventGameResult, settleReport{
			RoundID:  roundID,
			Result:   result.Slice(),
			TotalBet: r.totalBet,
			TotalWin: r.totalWin,
			Balance:  m.Balance,
		})
	}

	room.History = append(room.History, rec)
	room.LastResult = result.Slice()

	ev.broadcast(domain.EventGameResult, gameResultPayload{
		RoundID:  roundID,
		Result:   result.Slice(),
		TotalPot: totalPot,
	})

	if m, changed := room.RotateDealer(); changed {
		ev.broadcast(domain.EventNewDealer, dealerPayload{
			MemberID:   m.MemberID,
			Nickname:   m.Nickname,
			RoundsLeft: room.CurrentDealer.RoundsLeft,
		})
	}

	metrics.RecordSettlement(started)
	logger.Info(ctx).
		Str("room_id", room.RoomID).
		Int("round_id", roundID).
		Strs("result", result.Strings()).
		Int("bets", len(bets)).
		Int64("total_pot", totalPot).
		Int64("net_players", netPlayers).
		Dur("duration", time.Since(started)).
		Msg("round settled")

	return nil
}

// restoreBets re-queues bets popped by a settlement that did not commit, so
// a retry settles the same stakes instead of dropping them from the table.
func (uc *RoomUseCase) restoreBets(ctx context.Context, roomID string, bets []*domain.Bet) {
	for _, bet := range bets {
		bet.Status = domain.BetStatusPending
		bet.WinAmount = 0
		if err := uc.bets.Save(ctx, bet); err != nil {
			logger.Error(ctx).
				Str("room_id", roomID).
				Str("bet_id", bet.BetID).
				Err(err).
				Msg("restore bet after failed settlement")
		}
	}
}
