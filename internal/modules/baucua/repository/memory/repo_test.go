package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

func TestRoomRepoLoadMissing(t *testing.T) {
	repo := NewRoomRepository()

	_, err := repo.Load(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRoomRepoVersionCheck(t *testing.T) {
	repo := NewRoomRepository()
	ctx := context.Background()

	room := domain.NewRoom("r1", "host", domain.DefaultConfig())
	if err := repo.SaveAtomic(ctx, room, 0); err != nil {
		t.Fatal(err)
	}

	loaded, err := repo.Load(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Version != 1 {
		t.Fatalf("version = %d, want 1 after first save", loaded.Version)
	}

	// A stale expected version must not commit.
	if err := repo.SaveAtomic(ctx, loaded, 0); err == nil {
		t.Fatal("save with stale version should fail")
	}
	if err := repo.SaveAtomic(ctx, loaded, loaded.Version); err != nil {
		t.Fatalf("save with current version: %v", err)
	}

	reloaded, _ := repo.Load(ctx, "r1")
	if reloaded.Version != 2 {
		t.Errorf("version = %d, want 2", reloaded.Version)
	}
}

func TestRoomRepoLoadIsIsolated(t *testing.T) {
	repo := NewRoomRepository()
	ctx := context.Background()

	room := domain.NewRoom("r1", "host", domain.DefaultConfig())
	room.Members = append(room.Members, &domain.Member{MemberID: "host", Balance: 100000})
	if err := repo.SaveAtomic(ctx, room, 0); err != nil {
		t.Fatal(err)
	}

	loaded, _ := repo.Load(ctx, "r1")
	loaded.Members[0].Balance = 0
	loaded.Status = domain.StatusBetting

	fresh, _ := repo.Load(ctx, "r1")
	if fresh.Members[0].Balance != 100000 {
		t.Error("mutating a loaded room must not change the stored state")
	}
	if fresh.Status != domain.StatusWaiting {
		t.Errorf("status = %s, want waiting", fresh.Status)
	}
}

func TestRoomRepoListAndIDs(t *testing.T) {
	repo := NewRoomRepository()
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		if err := repo.SaveAtomic(ctx, domain.NewRoom(id, "host", domain.DefaultConfig()), 0); err != nil {
			t.Fatal(err)
		}
	}

	rooms, err := repo.ListByIDs(ctx, []string{"r1", "missing", "r2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Errorf("rooms = %d, want 2 (missing skipped)", len(rooms))
	}

	ids, err := repo.IDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %d, want 2", len(ids))
	}

	if err := repo.Delete(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted room still loads: %v", err)
	}
}

func TestBetRepoTakeForSettlementPopsOnce(t *testing.T) {
	repo := NewBetRepository()
	ctx := context.Background()

	b1 := domain.NewBet("r1", 1, "p2", domain.DoorBau, 5000)
	b2 := domain.NewBet("r1", 1, "p3", domain.DoorCua, 6000)
	b3 := domain.NewBet("r1", 1, "p2", domain.DoorTom, 7000)
	for _, b := range []*domain.Bet{b1, b2, b3} {
		if err := repo.Save(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	// A canceled bet is deleted and must not reach settlement.
	if err := repo.Delete(ctx, "r1", b2.BetID); err != nil {
		t.Fatal(err)
	}

	bets, err := repo.TakeForSettlement(ctx, "r1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bets) != 2 {
		t.Fatalf("bets = %d, want 2", len(bets))
	}
	if bets[0].BetID != b1.BetID || bets[1].BetID != b3.BetID {
		t.Error("settlement order should follow placement order")
	}

	again, err := repo.TakeForSettlement(ctx, "r1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second take = %d bets, want 0", len(again))
	}
}

func TestBetRepoGetAndListMemberBets(t *testing.T) {
	repo := NewBetRepository()
	ctx := context.Background()

	b1 := domain.NewBet("r1", 1, "p2", domain.DoorBau, 5000)
	b2 := domain.NewBet("r1", 1, "p3", domain.DoorGa, 6000)
	b3 := domain.NewBet("r1", 2, "p2", domain.DoorCa, 7000)
	for _, b := range []*domain.Bet{b1, b2, b3} {
		if err := repo.Save(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.Get(ctx, "r1", b1.BetID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Amount != 5000 {
		t.Errorf("unexpected bet: %+v", got)
	}
	if missing, _ := repo.Get(ctx, "r1", "nope"); missing != nil {
		t.Error("unknown bet id should return nil")
	}

	bets, err := repo.ListMemberBets(ctx, "r1", 1, "p2")
	if err != nil {
		t.Fatal(err)
	}
	if len(bets) != 1 || bets[0].BetID != b1.BetID {
		t.Errorf("member bets = %+v, want only the round 1 bet of p2", bets)
	}
}

func TestBetRepoClearRoom(t *testing.T) {
	repo := NewBetRepository()
	ctx := context.Background()

	bet := domain.NewBet("r1", 1, "p2", domain.DoorNai, 5000)
	if err := repo.Save(ctx, bet); err != nil {
		t.Fatal(err)
	}
	if err := repo.ClearRoom(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	if got, _ := repo.Get(ctx, "r1", bet.BetID); got != nil {
		t.Error("cleared room should hold no bets")
	}
	bets, _ := repo.TakeForSettlement(ctx, "r1", 1)
	if len(bets) != 0 {
		t.Errorf("settlement queue should be empty, got %d", len(bets))
	}
}
