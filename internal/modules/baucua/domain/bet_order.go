package domain

import "time"

// BetOrder is the persisted record of a settled bet.
type BetOrder struct {
	OrderID   string     `gorm:"primaryKey;type:varchar(64)" json:"orderId"`
	RoomID    string     `gorm:"type:varchar(64);not null;index:idx_bet_orders_room_id" json:"roomId"`
	RoundID   int        `gorm:"not null;index:idx_bet_orders_round_id" json:"roundId"`
	MemberID  string     `gorm:"type:varchar(64);not null;index:idx_bet_orders_member_id" json:"memberId"`
	Door      string     `gorm:"type:varchar(16);not null" json:"door"`
	Amount    int64      `gorm:"not null" json:"amount"`
	WinAmount int64      `gorm:"not null;default:0" json:"winAmount"`
	Status    string     `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time  `gorm:"not null;index:idx_bet_orders_created_at" json:"createdAt"`
	SettledAt *time.Time `json:"settledAt"`
}

// TableName overrides the table name
func (BetOrder) TableName() string {
	return "bet_orders"
}

// NewBetOrder builds the order row for a settled bet.
func NewBetOrder(bet *Bet, settledAt time.Time) *BetOrder {
	return &BetOrder{
		OrderID:   bet.BetID,
		RoomID:    bet.RoomID,
		RoundID:   bet.RoundID,
		MemberID:  bet.MemberID,
		Door:      string(bet.Door),
		Amount:    bet.Amount,
		WinAmount: bet.WinAmount,
		Status:    string(bet.Status),
		CreatedAt: bet.Time,
		SettledAt: &settledAt,
	}
}
