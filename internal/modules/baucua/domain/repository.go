package domain

import "context"

// RoomRepository is the durable room registry. Load returns a copy the
// caller may mutate; SaveAtomic commits it only when expectedVersion still
// matches the stored version.
type RoomRepository interface {
	Load(ctx context.Context, roomID string) (*Room, error)
	SaveAtomic(ctx context.Context, room *Room, expectedVersion int64) error
	Delete(ctx context.Context, roomID string) error
	ListByIDs(ctx context.Context, roomIDs []string) ([]*Room, error)
	IDs(ctx context.Context) ([]string, error)
}

// BetRepository stores pending bets for open rounds. TakeForSettlement pops
// every pending bet of a round exactly once, which is what makes re-running
// settlement a no-op.
type BetRepository interface {
	Save(ctx context.Context, bet *Bet) error
	Get(ctx context.Context, roomID, betID string) (*Bet, error)
	Delete(ctx context.Context, roomID, betID string) error
	ListMemberBets(ctx context.Context, roomID string, roundID int, memberID string) ([]*Bet, error)
	TakeForSettlement(ctx context.Context, roomID string, roundID int) ([]*Bet, error)
	ClearRoom(ctx context.Context, roomID string) error
}

// BetOrderQuery filters the settled-order history.
type BetOrderQuery struct {
	RoomID   string
	MemberID string
	RoundID  int
	Page     int
	PageSize int
}

// BetOrderRepository persists settled bets for history queries.
type BetOrderRepository interface {
	BatchCreate(ctx context.Context, orders []*BetOrder) error
	List(ctx context.Context, q BetOrderQuery) ([]*BetOrder, int64, error)
}

// RoundRepository persists settled round records.
type RoundRepository interface {
	Create(ctx context.Context, roomID string, rec RoundRecord) error
}
