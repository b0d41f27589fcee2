package machine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

type fakeDriver struct {
	mu          sync.Mutex
	calls       []string
	ticks       int
	secondsSeen []int
	failOn      string
	failErr     error
}

func (d *fakeDriver) record(step, roomID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if step == d.failOn {
		return d.failErr
	}
	d.calls = append(d.calls, step)
	return nil
}

func (d *fakeDriver) OpenBetting(ctx context.Context, roomID string) error {
	return d.record("open_betting", roomID)
}

func (d *fakeDriver) StartShaking(ctx context.Context, roomID string) error {
	return d.record("start_shaking", roomID)
}

func (d *fakeDriver) RevealResult(ctx context.Context, roomID string) error {
	return d.record("reveal_result", roomID)
}

func (d *fakeDriver) Tick(roomID string, status domain.Status, secondsLeft int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ticks++
	d.secondsSeen = append(d.secondsSeen, secondsLeft)
}

func (d *fakeDriver) count(step string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == step {
			n++
		}
	}
	return n
}

func newFastMachine(driver Driver) *StateMachine {
	sm := NewStateMachine(driver)
	sm.BettingDuration = 20 * time.Millisecond
	sm.ShakingDuration = 10 * time.Millisecond
	sm.ResultDuration = 10 * time.Millisecond
	sm.TickInterval = 5 * time.Millisecond
	return sm
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestAutoLoopCyclesThroughPhases(t *testing.T) {
	driver := &fakeDriver{}
	sm := newFastMachine(driver)
	defer sm.Shutdown()

	sm.StartAuto("r1")
	if !sm.Running("r1") {
		t.Fatal("loop should be running after StartAuto")
	}

	// Two full cycles prove the loop re-opens betting after a result.
	waitFor(t, 2*time.Second, func() bool {
		return driver.count("open_betting") >= 2 &&
			driver.count("start_shaking") >= 2 &&
			driver.count("reveal_result") >= 2
	})

	driver.mu.Lock()
	ticks := driver.ticks
	driver.mu.Unlock()
	if ticks == 0 {
		t.Error("expected countdown ticks during timed phases")
	}

	sm.StopRoom("r1")
	waitFor(t, time.Second, func() bool { return !sm.Running("r1") })
}

func TestRunPhaseTicksOnSubSecondPhases(t *testing.T) {
	driver := &fakeDriver{}
	sm := newFastMachine(driver)

	if !sm.runPhase(context.Background(), "r1", domain.StatusBetting, 30*time.Millisecond) {
		t.Fatal("runPhase should complete without cancellation")
	}

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if driver.ticks == 0 {
		t.Fatal("phases shorter than a second should still tick")
	}
	for _, s := range driver.secondsSeen {
		if s < 1 {
			t.Errorf("tick reported %d seconds left; remaining time rounds up", s)
		}
	}
}

func TestStartAutoIsIdempotent(t *testing.T) {
	driver := &fakeDriver{}
	sm := newFastMachine(driver)
	defer sm.Shutdown()

	sm.StartAuto("r1")
	sm.StartAuto("r1")
	if !sm.Running("r1") {
		t.Fatal("loop should be running")
	}

	sm.StopRoom("r1")
	waitFor(t, time.Second, func() bool { return !sm.Running("r1") })
}

func TestLoopHaltsOnDriverError(t *testing.T) {
	driver := &fakeDriver{failOn: "reveal_result", failErr: fmt.Errorf("settlement failed")}
	sm := newFastMachine(driver)
	defer sm.Shutdown()

	sm.StartAuto("r1")

	// The loop exits on the first settlement failure instead of opening a
	// new betting window over an unsettled round.
	waitFor(t, 2*time.Second, func() bool { return !sm.Running("r1") })
	if got := driver.count("open_betting"); got != 1 {
		t.Errorf("open_betting calls = %d, want 1", got)
	}
}

func TestShutdownStopsAllLoops(t *testing.T) {
	driver := &fakeDriver{}
	sm := newFastMachine(driver)

	sm.StartAuto("r1")
	sm.StartAuto("r2")
	sm.Shutdown()

	if sm.Running("r1") || sm.Running("r2") {
		t.Error("loops should be stopped after Shutdown")
	}
}
