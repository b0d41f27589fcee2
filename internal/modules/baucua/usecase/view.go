package usecase

import (
	"time"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

const historyViewSize = 20

// MemberView is the member slice of the read model.
type MemberView struct {
	MemberID string `json:"memberId"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Balance  int64  `json:"balance"`
	Online   bool   `json:"online"`
}

// RoomView is the read model pushed to clients on every mutation.
type RoomView struct {
	RoomID        string                `json:"roomId"`
	Status        domain.Status        `json:"status"`
	TimeLeft      int                  `json:"timeLeft"`
	LastResult    []domain.Door        `json:"lastResult"`
	Config        domain.Config        `json:"config"`
	CurrentDealer domain.Dealer        `json:"currentDealer"`
	Members       []MemberView         `json:"members"`
	TotalBets     map[domain.Door]int64 `json:"totalBets"`
	History       []domain.RoundRecord `json:"history"`
}

func (uc *RoomUseCase) newRoomView(room *domain.Room) *RoomView {
	members := make([]MemberView, 0, len(room.Members))
	for _, m := range room.Members {
		members = append(members, MemberView{
			MemberID: m.MemberID,
			Nickname: m.Nickname,
			Avatar:   m.Avatar,
			Balance:  m.Balance,
			Online:   m.Online,
		})
	}

	totals := make(map[domain.Door]int64, len(room.TotalBets))
	for d, v := range room.TotalBets {
		totals[d] = v
	}

	history := room.History
	if len(history) > historyViewSize {
		history = history[len(history)-historyViewSize:]
	}
	recent := make([]domain.RoundRecord, len(history))
	copy(recent, history)

	timeLeft := 0
	if !room.PhaseEnd.IsZero() {
		if left := time.Until(room.PhaseEnd); left > 0 {
			timeLeft = int((left + time.Second - 1) / time.Second)
		}
	}

	return &RoomView{
		RoomID:        room.RoomID,
		Status:        room.Status,
		TimeLeft:      timeLeft,
		LastResult:    append([]domain.Door(nil), room.LastResult...),
		Config:        room.Config,
		CurrentDealer: room.CurrentDealer,
		Members:       members,
		TotalBets:     totals,
		History:       recent,
	}
}
