// Package domain holds the bau cua room model: rooms, members, bets,
// rounds, payout math and the repository contracts.
package domain

import "math/rand"

// Door is one of the six faces a player can wager on.
type Door string

const (
	DoorBau Door = "bau" // gourd
	DoorCua Door = "cua" // crab
	DoorTom Door = "tom" // shrimp
	DoorCa  Door = "ca"  // fish
	DoorGa  Door = "ga"  // rooster
	DoorNai Door = "nai" // deer
)

// Doors lists the full door alphabet in display order.
func Doors() []Door {
	return []Door{DoorBau, DoorCua, DoorTom, DoorCa, DoorGa, DoorNai}
}

// IsValid reports whether d belongs to the door alphabet.
func (d Door) IsValid() bool {
	switch d {
	case DoorBau, DoorCua, DoorTom, DoorCa, DoorGa, DoorNai:
		return true
	}
	return false
}

// Result is the ordered triple of doors a round resolves to. A door may
// repeat.
type Result [3]Door

// Slice returns the result as a door slice for serialization.
func (r Result) Slice() []Door {
	return []Door{r[0], r[1], r[2]}
}

// Strings returns the result as plain strings.
func (r Result) Strings() []string {
	return []string{string(r[0]), string(r[1]), string(r[2])}
}

// MatchCount counts how many positions of the result equal door.
func (r Result) MatchCount(door Door) int {
	n := 0
	for _, d := range r {
		if d == door {
			n++
		}
	}
	return n
}

// WinAmount computes the payout for a bet of amount on a door that matched
// matchCount times: stake returned plus matchCount times the stake as
// profit. Zero when nothing matched.
func WinAmount(amount int64, matchCount int) int64 {
	if matchCount <= 0 {
		return 0
	}
	return amount + amount*int64(matchCount)
}

// RollResult draws a random result triple using rnd.
func RollResult(rnd *rand.Rand) Result {
	doors := Doors()
	var r Result
	for i := range r {
		r[i] = doors[rnd.Intn(len(doors))]
	}
	return r
}
