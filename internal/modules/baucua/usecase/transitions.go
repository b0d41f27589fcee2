package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// statusPayload is the body of game_status and countdown events.
type statusPayload struct {
	Status   domain.Status `json:"status"`
	TimeLeft int           `json:"timeLeft"`
}

// openBetting enters the betting phase: totals reset, last result cleared.
// dur is zero for manual rooms, whose phases are untimed.
func (uc *RoomUseCase) openBetting(room *domain.Room, ev *events, dur time.Duration) error {
	switch room.Status {
	case domain.StatusWaiting, domain.StatusResult:
	default:
		return fmt.Errorf("%w: cannot open betting from %s", domain.ErrWrongState, room.Status)
	}

	room.EnterBetting()
	room.PhaseEnd = phaseEnd(dur)

	ev.broadcast(domain.EventGameStatus, statusPayload{Status: room.Status, TimeLeft: seconds(dur)})
	ev.broadcast(domain.EventRoomUpdate, uc.newRoomView(room))
	return nil
}

func (uc *RoomUseCase) startShaking(room *domain.Room, ev *events, dur time.Duration) error {
	if room.Status != domain.StatusBetting {
		return fmt.Errorf("%w: cannot start shaking from %s", domain.ErrWrongState, room.Status)
	}

	room.Status = domain.StatusShaking
	room.PhaseEnd = phaseEnd(dur)

	ev.broadcast(domain.EventGameStatus, statusPayload{Status: room.Status, TimeLeft: seconds(dur)})
	ev.broadcast(domain.EventRoomUpdate, uc.newRoomView(room))
	return nil
}

// revealResult closes the round: the only trigger for settlement. taken
// receives the bets popped for settlement; when the surrounding commit
// fails the caller restores them.
func (uc *RoomUseCase) revealResult(ctx context.Context, room *domain.Room, ev *events, dur time.Duration, taken *[]*domain.Bet) error {
	if room.Status != domain.StatusShaking {
		return fmt.Errorf("%w: cannot reveal result from %s", domain.ErrWrongState, room.Status)
	}

	if err := uc.settle(ctx, room, ev, taken); err != nil {
		return err
	}

	room.Status = domain.StatusResult
	room.PhaseEnd = phaseEnd(dur)

	ev.broadcast(domain.EventGameStatus, statusPayload{Status: room.Status, TimeLeft: seconds(dur)})
	ev.broadcast(domain.EventRoomUpdate, uc.newRoomView(room))
	return nil
}

func phaseEnd(dur time.Duration) time.Time {
	if dur <= 0 {
		return time.Time{}
	}
	return time.Now().Add(dur)
}

func seconds(dur time.Duration) int {
	return int(dur.Seconds())
}

// --- automatic loop driver (machine.Driver) ---

// OpenBetting is the auto-loop betting transition.
func (uc *RoomUseCase) OpenBetting(ctx context.Context, roomID string) error {
	return uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if room.Config.PlayMode != domain.PlayModeAuto {
			return fmt.Errorf("%w: room %s is not in auto mode", domain.ErrWrongState, roomID)
		}
		return uc.openBetting(room, ev, uc.sm.BettingDuration)
	})
}

// StartShaking is the auto-loop shaking transition.
func (uc *RoomUseCase) StartShaking(ctx context.Context, roomID string) error {
	return uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if room.Config.PlayMode != domain.PlayModeAuto {
			return fmt.Errorf("%w: room %s is not in auto mode", domain.ErrWrongState, roomID)
		}
		return uc.startShaking(room, ev, uc.sm.ShakingDuration)
	})
}

// RevealResult is the auto-loop settlement transition.
func (uc *RoomUseCase) RevealResult(ctx context.Context, roomID string) error {
	var taken []*domain.Bet
	err := uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if room.Config.PlayMode != domain.PlayModeAuto {
			return fmt.Errorf("%w: room %s is not in auto mode", domain.ErrWrongState, roomID)
		}
		return uc.revealResult(ctx, room, ev, uc.sm.ResultDuration, &taken)
	})
	if err != nil {
		// Settlement did not commit; the popped bets go back in the queue
		// so a retry settles the same stakes.
		uc.restoreBets(ctx, roomID, taken)
	}
	return err
}

// Tick broadcasts the per-second countdown of a timed phase.
func (uc *RoomUseCase) Tick(roomID string, status domain.Status, secondsLeft int) {
	uc.bc.BroadcastRoom(roomID, domain.EventCountdown, statusPayload{Status: status, TimeLeft: secondsLeft})
}

// --- caller-facing round control ---

// StartRound starts the round flow. Auto rooms spin up the loop (no-op when
// the phase is not startable or the loop already runs); manual rooms open
// the first betting window, dealer only.
func (uc *RoomUseCase) StartRound(ctx context.Context, roomID, callerID string) error {
	h := uc.handle(roomID)
	h.Lock()
	room, err := uc.rooms.Load(ctx, roomID)
	if err != nil {
		h.Unlock()
		return err
	}
	mode := room.Config.PlayMode
	status := room.Status
	h.Unlock()

	if mode == domain.PlayModeAuto {
		if status != domain.StatusWaiting && status != domain.StatusResult {
			return nil
		}
		uc.sm.StartAuto(roomID)
		logger.Info(ctx).Str("room_id", roomID).Str("caller_id", callerID).Msg("auto round loop requested")
		return nil
	}

	return uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if err := manualGate(room, callerID); err != nil {
			return err
		}
		if room.Status != domain.StatusWaiting {
			return fmt.Errorf("%w: round already started", domain.ErrWrongState)
		}
		return uc.openBetting(room, ev, 0)
	})
}

// ManualShake closes the betting window (betting to shaking), dealer only.
func (uc *RoomUseCase) ManualShake(ctx context.Context, roomID, callerID string) error {
	return uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if err := manualGate(room, callerID); err != nil {
			return err
		}
		return uc.startShaking(room, ev, 0)
	})
}

// ManualReveal opens the bowl (shaking to result), settling the round,
// dealer only.
func (uc *RoomUseCase) ManualReveal(ctx context.Context, roomID, callerID string) error {
	var taken []*domain.Bet
	err := uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if err := manualGate(room, callerID); err != nil {
			return err
		}
		return uc.revealResult(ctx, room, ev, 0, &taken)
	})
	if err != nil {
		uc.restoreBets(ctx, roomID, taken)
	}
	return err
}

// ManualNextRound opens the next betting window (result to betting), dealer
// only.
func (uc *RoomUseCase) ManualNextRound(ctx context.Context, roomID, callerID string) error {
	return uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		if err := manualGate(room, callerID); err != nil {
			return err
		}
		if room.Status != domain.StatusResult {
			return fmt.Errorf("%w: cannot start next round from %s", domain.ErrWrongState, room.Status)
		}
		return uc.openBetting(room, ev, 0)
	})
}

func manualGate(room *domain.Room, callerID string) error {
	if room.Config.PlayMode != domain.PlayModeManual {
		return fmt.Errorf("%w: room %s is not in manual mode", domain.ErrWrongState, room.RoomID)
	}
	if !room.IsDealer(callerID) {
		return fmt.Errorf("%w: only the dealer can advance the round", domain.ErrWrongState)
	}
	return nil
}
