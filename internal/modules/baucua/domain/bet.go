package domain

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BetStatus is the settlement state of a bet.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWin     BetStatus = "win"
	BetStatusLose    BetStatus = "lose"
)

// Bet is a single wager intent: created while a room is betting, settled
// exactly once, deleted (not mutated) on cancel.
type Bet struct {
	BetID     string    `json:"betId"`
	RoomID    string    `json:"roomId"`
	RoundID   int       `json:"roundId"`
	MemberID  string    `json:"memberId"`
	Door      Door      `json:"door"`
	Amount    int64     `json:"amount"`
	Status    BetStatus `json:"status"`
	WinAmount int64     `json:"winAmount"`
	Time      time.Time `json:"time"`
}

var (
	node *snowflake.Node
	once sync.Once
)

func initSnowflake() {
	var err error
	node, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// NewBet creates a pending bet with a generated id.
func NewBet(roomID string, roundID int, memberID string, door Door, amount int64) *Bet {
	return &Bet{
		BetID:    generateBetID(),
		RoomID:   roomID,
		RoundID:  roundID,
		MemberID: memberID,
		Door:     door,
		Amount:   amount,
		Status:   BetStatusPending,
		Time:     time.Now(),
	}
}

func generateBetID() string {
	once.Do(initSnowflake)
	return node.Generate().String()
}
