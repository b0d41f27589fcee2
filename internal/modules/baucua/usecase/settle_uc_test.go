package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

// seedRoll fixes the use case's dice and returns the result the next
// settlement will roll.
func seedRoll(f *fixture, seed int64) domain.Result {
	f.uc.rnd = rand.New(rand.NewSource(seed))
	return domain.RollResult(rand.New(rand.NewSource(seed)))
}

// missingDoor returns a door absent from the result; three dice can cover
// at most three of the six doors.
func missingDoor(t *testing.T, result domain.Result) domain.Door {
	t.Helper()
	for _, d := range domain.Doors() {
		if result.MatchCount(d) == 0 {
			return d
		}
	}
	t.Fatal("no missing door")
	return ""
}

func memberBalances(room *domain.Room) map[string]int64 {
	out := make(map[string]int64, len(room.Members))
	for _, m := range room.Members {
		out[m.MemberID] = m.Balance
	}
	return out
}

func TestSettlementPaysWinnersAndChargesDealer(t *testing.T) {
	f := newBettingRoom(t)
	ctx := context.Background()

	expected := seedRoll(f, 7)
	winDoor := expected[0]
	loseDoor := missingDoor(t, expected)

	if _, err := f.uc.PlaceBet(ctx, "r1", "p2", winDoor, 10000); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.PlaceBet(ctx, "r1", "p3", loseDoor, 10000); err != nil {
		t.Fatal(err)
	}

	if err := f.uc.ManualShake(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualReveal(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}

	room := f.loadRoom(t, "r1")
	if got := (domain.Result{room.LastResult[0], room.LastResult[1], room.LastResult[2]}); got != expected {
		t.Fatalf("result = %v, want %v", got, expected)
	}

	balances := memberBalances(room)
	winAmt := domain.WinAmount(10000, expected.MatchCount(winDoor))
	if balances["p2"] != 100000-10000+winAmt {
		t.Errorf("p2 balance = %d, want %d", balances["p2"], 100000-10000+winAmt)
	}
	if balances["p3"] != 90000 {
		t.Errorf("p3 balance = %d, want 90000", balances["p3"])
	}

	// The dealer absorbs the table's net payout, so the room conserves
	// value across settlement.
	var sum int64
	for _, b := range balances {
		sum += b
	}
	if sum != 3*100000 {
		t.Errorf("total balance = %d, want %d (zero-sum)", sum, 3*100000)
	}

	if len(room.History) != 1 {
		t.Fatalf("history = %d, want 1", len(room.History))
	}
	rec := room.History[0]
	if rec.RoundID != 1 || rec.TotalPot != 20000 {
		t.Errorf("unexpected round record: %+v", rec)
	}

	memberReports := 0
	for _, e := range f.bc.named(domain.EventGameResult) {
		if e.memberID != "" {
			memberReports++
		}
	}
	if memberReports != 2 {
		t.Errorf("per-member game_result events = %d, want 2", memberReports)
	}
}

func TestSettlementDrainsPendingBets(t *testing.T) {
	f := newBettingRoom(t)
	ctx := context.Background()

	seedRoll(f, 3)
	if _, err := f.uc.PlaceBet(ctx, "r1", "p2", domain.DoorBau, 5000); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualShake(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualReveal(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}

	bets, err := f.bets.TakeForSettlement(ctx, "r1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bets) != 0 {
		t.Errorf("pending bets after settlement = %d, want 0", len(bets))
	}

	// The round cannot be settled twice: the phase gate rejects a second
	// reveal outright.
	if err := f.uc.ManualReveal(ctx, "r1", "host"); !errors.Is(err, domain.ErrWrongState) {
		t.Errorf("err = %v, want ErrWrongState", err)
	}
	if got := len(f.loadRoom(t, "r1").History); got != 1 {
		t.Errorf("history = %d, want 1", got)
	}
}

func TestSettlementPersistsOrdersAndRound(t *testing.T) {
	f := newBettingRoom(t)
	ctx := context.Background()

	stub := &stubOrderRepo{}
	rounds := &stubRoundRepo{}
	f.uc.orders = stub
	f.uc.rounds = rounds

	expected := seedRoll(f, 11)
	winDoor := expected[0]
	loseDoor := missingDoor(t, expected)

	if _, err := f.uc.PlaceBet(ctx, "r1", "p2", winDoor, 10000); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.PlaceBet(ctx, "r1", "p3", loseDoor, 10000); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualShake(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualReveal(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}

	if len(stub.orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(stub.orders))
	}
	for _, o := range stub.orders {
		switch o.Door {
		case string(winDoor):
			if o.Status != string(domain.BetStatusWin) || o.WinAmount == 0 {
				t.Errorf("win order not settled: %+v", o)
			}
		case string(loseDoor):
			if o.Status != string(domain.BetStatusLose) || o.WinAmount != 0 {
				t.Errorf("lose order not settled: %+v", o)
			}
		}
	}

	if len(rounds.recs) != 1 || rounds.recs[0].RoundID != 1 {
		t.Errorf("round records = %+v, want one for round 1", rounds.recs)
	}
}

func TestSettlementHaltsOnPersistFailure(t *testing.T) {
	f := newBettingRoom(t)
	ctx := context.Background()

	f.uc.orders = &failingOrderRepo{}
	seedRoll(f, 5)

	receipt, err := f.uc.PlaceBet(ctx, "r1", "p2", domain.DoorCua, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualShake(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}

	if err := f.uc.ManualReveal(ctx, "r1", "host"); !errors.Is(err, domain.ErrSystem) {
		t.Fatalf("err = %v, want ErrSystem", err)
	}

	// The room stays in its last committed state; no balance moved.
	room := f.loadRoom(t, "r1")
	if room.Status != domain.StatusShaking {
		t.Errorf("status = %s, want shaking", room.Status)
	}
	if len(room.History) != 0 {
		t.Errorf("history = %d, want 0", len(room.History))
	}
	if got := room.FindMember("p2").Balance; got != 95000 {
		t.Errorf("balance = %d, want 95000 (stake held, no payout)", got)
	}

	// The popped bet is back in the queue, still pending.
	bet, err := f.bets.Get(ctx, "r1", receipt.BetID)
	if err != nil {
		t.Fatal(err)
	}
	if bet == nil || bet.Status != domain.BetStatusPending {
		t.Errorf("bet after failed settlement = %+v, want pending", bet)
	}
}

func TestSettlementRetryAfterPersistFailure(t *testing.T) {
	f := newBettingRoom(t)
	ctx := context.Background()

	flaky := &flakyOrderRepo{failures: 1}
	f.uc.orders = flaky

	// The failed attempt consumes one roll; the retry rolls again.
	f.uc.rnd = rand.New(rand.NewSource(5))
	rolls := rand.New(rand.NewSource(5))
	domain.RollResult(rolls)
	expected := domain.RollResult(rolls)
	winDoor := expected[0]

	if _, err := f.uc.PlaceBet(ctx, "r1", "p2", winDoor, 5000); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ManualShake(ctx, "r1", "host"); err != nil {
		t.Fatal(err)
	}

	if err := f.uc.ManualReveal(ctx, "r1", "host"); !errors.Is(err, domain.ErrSystem) {
		t.Fatalf("first reveal err = %v, want ErrSystem", err)
	}
	if err := f.uc.ManualReveal(ctx, "r1", "host"); err != nil {
		t.Fatalf("retry reveal: %v", err)
	}

	// The retry settles the held stake, not an empty queue.
	if len(flaky.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(flaky.orders))
	}

	room := f.loadRoom(t, "r1")
	winAmt := domain.WinAmount(5000, expected.MatchCount(winDoor))
	if got := room.FindMember("p2").Balance; got != 100000-5000+winAmt {
		t.Errorf("p2 balance = %d, want %d", got, 100000-5000+winAmt)
	}

	var sum int64
	for _, b := range memberBalances(room) {
		sum += b
	}
	if sum != 3*100000 {
		t.Errorf("total balance = %d, want %d (no stake lost across the retry)", sum, 3*100000)
	}

	if bets, _ := f.bets.TakeForSettlement(ctx, "r1", 1); len(bets) != 0 {
		t.Errorf("pending bets after retry = %d, want 0", len(bets))
	}
}

func TestDealerRotatesAfterConfiguredRounds(t *testing.T) {
	f := newBettingRoom(t)
	ctx := context.Background()
	seedRoll(f, 9)

	playRound := func(first bool) {
		if !first {
			if err := f.uc.ManualNextRound(ctx, "r1", "host"); err != nil {
				t.Fatal(err)
			}
		}
		if err := f.uc.ManualShake(ctx, "r1", "host"); err != nil {
			t.Fatal(err)
		}
		if err := f.uc.ManualReveal(ctx, "r1", "host"); err != nil {
			t.Fatal(err)
		}
	}

	playRound(true)
	playRound(false)
	if got := len(f.bc.named(domain.EventNewDealer)); got != 0 {
		t.Fatalf("new_dealer events = %d before the third round", got)
	}

	playRound(false)
	events := f.bc.named(domain.EventNewDealer)
	if len(events) != 1 {
		t.Fatalf("new_dealer events = %d, want 1", len(events))
	}

	room := f.loadRoom(t, "r1")
	if room.CurrentDealer.MemberID != "p2" {
		t.Errorf("dealer = %s, want p2 (join order successor)", room.CurrentDealer.MemberID)
	}
	if room.CurrentDealer.RoundsLeft != 3 {
		t.Errorf("RoundsLeft = %d, want reset to 3", room.CurrentDealer.RoundsLeft)
	}
}

type stubRoundRepo struct {
	recs []domain.RoundRecord
}

func (s *stubRoundRepo) Create(ctx context.Context, roomID string, rec domain.RoundRecord) error {
	s.recs = append(s.recs, rec)
	return nil
}

// flakyOrderRepo fails the first n BatchCreate calls, then behaves.
type flakyOrderRepo struct {
	stubOrderRepo
	failures int
}

func (f *flakyOrderRepo) BatchCreate(ctx context.Context, orders []*domain.BetOrder) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("db down")
	}
	return f.stubOrderRepo.BatchCreate(ctx, orders)
}

type failingOrderRepo struct{}

func (f *failingOrderRepo) BatchCreate(ctx context.Context, orders []*domain.BetOrder) error {
	return fmt.Errorf("db down")
}

func (f *failingOrderRepo) List(ctx context.Context, q domain.BetOrderQuery) ([]*domain.BetOrder, int64, error) {
	return nil, 0, fmt.Errorf("db down")
}
