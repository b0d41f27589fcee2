// Package machine runs the per-room round lifecycle: the automatic
// betting/shaking/result loop with one countdown tick per second.
package machine

import (
	"context"
	"sync"
	"time"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// Driver applies phase transitions to a room under its serialized handle.
// Each transition validates the room's current phase first, so a loop
// continuation that outlived a teardown or a manual takeover fails with a
// state error instead of acting on a stale round.
type Driver interface {
	OpenBetting(ctx context.Context, roomID string) error
	StartShaking(ctx context.Context, roomID string) error
	RevealResult(ctx context.Context, roomID string) error
	Tick(roomID string, status domain.Status, secondsLeft int)
}

// StateMachine owns the automatic loops, one cancellable goroutine per room.
type StateMachine struct {
	driver Driver

	BettingDuration time.Duration
	ShakingDuration time.Duration
	ResultDuration  time.Duration
	TickInterval    time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewStateMachine creates a state machine with stock phase durations.
func NewStateMachine(driver Driver) *StateMachine {
	return &StateMachine{
		driver:          driver,
		BettingDuration: 20 * time.Second,
		ShakingDuration: 3 * time.Second,
		ResultDuration:  5 * time.Second,
		TickInterval:    time.Second,
		cancels:         make(map[string]context.CancelFunc),
	}
}

// StartAuto begins the automatic loop for a room. Starting a room whose
// loop is already running is a no-op.
func (sm *StateMachine) StartAuto(roomID string) {
	sm.mu.Lock()
	if _, running := sm.cancels[roomID]; running {
		sm.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	sm.cancels[roomID] = cancel
	sm.mu.Unlock()

	sm.wg.Add(1)
	go sm.runLoop(ctx, roomID)
}

// StopRoom cancels a room's loop; any pending continuation becomes a no-op.
func (sm *StateMachine) StopRoom(roomID string) {
	sm.mu.Lock()
	cancel, ok := sm.cancels[roomID]
	if ok {
		delete(sm.cancels, roomID)
	}
	sm.mu.Unlock()

	if ok {
		cancel()
	}
}

// Running reports whether a room has an automatic loop.
func (sm *StateMachine) Running(roomID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, ok := sm.cancels[roomID]
	return ok
}

// Shutdown cancels every loop and waits for them to exit.
func (sm *StateMachine) Shutdown() {
	sm.mu.Lock()
	for roomID, cancel := range sm.cancels {
		cancel()
		delete(sm.cancels, roomID)
	}
	sm.mu.Unlock()

	sm.wg.Wait()
}

func (sm *StateMachine) runLoop(ctx context.Context, roomID string) {
	defer sm.wg.Done()
	defer sm.StopRoom(roomID)

	logger.Info(ctx).Str("room_id", roomID).Msg("round loop started")

	for {
		if err := sm.driver.OpenBetting(ctx, roomID); err != nil {
			sm.exitLoop(ctx, roomID, "open betting", err)
			return
		}
		if !sm.runPhase(ctx, roomID, domain.StatusBetting, sm.BettingDuration) {
			return
		}

		if err := sm.driver.StartShaking(ctx, roomID); err != nil {
			sm.exitLoop(ctx, roomID, "start shaking", err)
			return
		}
		if !sm.runPhase(ctx, roomID, domain.StatusShaking, sm.ShakingDuration) {
			return
		}

		// Settlement must complete before the next betting gate opens;
		// a persistence failure here halts the loop so the room stays
		// in its last committed state.
		if err := sm.driver.RevealResult(ctx, roomID); err != nil {
			sm.exitLoop(ctx, roomID, "reveal result", err)
			return
		}
		if !sm.runPhase(ctx, roomID, domain.StatusResult, sm.ResultDuration) {
			return
		}
	}
}

// runPhase waits out one phase, emitting a countdown tick each second.
// Returns false when the loop was cancelled.
func (sm *StateMachine) runPhase(ctx context.Context, roomID string, status domain.Status, duration time.Duration) bool {
	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(sm.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			left := deadline.Sub(now)
			if left <= 0 {
				return true
			}
			// Ceiling: a sub-second remainder still counts as one second.
			sm.driver.Tick(roomID, status, int((left+time.Second-1)/time.Second))
		}
	}
}

func (sm *StateMachine) exitLoop(ctx context.Context, roomID, step string, err error) {
	logger.Warn(ctx).
		Str("room_id", roomID).
		Str("step", step).
		Err(err).
		Msg("round loop halted")
}
