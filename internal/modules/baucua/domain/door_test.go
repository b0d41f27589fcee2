package domain

import (
	"math/rand"
	"testing"
)

func TestMatchCount(t *testing.T) {
	result := Result{DoorBau, DoorCua, DoorBau}

	cases := []struct {
		door Door
		want int
	}{
		{DoorBau, 2},
		{DoorCua, 1},
		{DoorTom, 0},
		{DoorNai, 0},
	}
	for _, tc := range cases {
		if got := result.MatchCount(tc.door); got != tc.want {
			t.Errorf("MatchCount(%s) = %d, want %d", tc.door, got, tc.want)
		}
	}
}

func TestWinAmount(t *testing.T) {
	cases := []struct {
		amount     int64
		matchCount int
		want       int64
	}{
		{10000, 1, 20000}, // stake back plus one time profit
		{10000, 2, 30000},
		{10000, 3, 40000},
		{10000, 0, 0},
		{5000, 2, 15000},
	}
	for _, tc := range cases {
		if got := WinAmount(tc.amount, tc.matchCount); got != tc.want {
			t.Errorf("WinAmount(%d, %d) = %d, want %d", tc.amount, tc.matchCount, got, tc.want)
		}
	}
}

// A 10000 bet on bau against bau/cua/bau pays 30000: the member staked
// 10000 from 100000, so the final balance lands on 120000.
func TestPayoutScenario(t *testing.T) {
	result := Result{DoorBau, DoorCua, DoorBau}

	var balance int64 = 100000
	var stake int64 = 10000

	balance -= stake
	win := WinAmount(stake, result.MatchCount(DoorBau))
	if win != 30000 {
		t.Fatalf("win = %d, want 30000", win)
	}
	balance += win
	if balance != 120000 {
		t.Fatalf("balance = %d, want 120000", balance)
	}
}

func TestDoorIsValid(t *testing.T) {
	for _, d := range Doors() {
		if !d.IsValid() {
			t.Errorf("door %s should be valid", d)
		}
	}
	for _, d := range []Door{"", "dog", "BAU"} {
		if d.IsValid() {
			t.Errorf("door %q should be invalid", d)
		}
	}
}

func TestRollResult(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		result := RollResult(rnd)
		for _, d := range result {
			if !d.IsValid() {
				t.Fatalf("rolled invalid door %q", d)
			}
		}
	}
}
