package memory

import (
	"context"
	"sync"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

// BetRepository implements domain.BetRepository using memory. Besides the
// bet data itself it keeps a per-room queue of bet ids in placement order,
// which TakeForSettlement drains.
type BetRepository struct {
	bets  map[string]map[string]*domain.Bet // roomID -> betID -> bet
	queue map[string][]string               // roomID -> betIDs in placement order
	mu    sync.RWMutex
}

// NewBetRepository creates an empty bet repository.
func NewBetRepository() *BetRepository {
	return &BetRepository{
		bets:  make(map[string]map[string]*domain.Bet),
		queue: make(map[string][]string),
	}
}

func (r *BetRepository) Save(ctx context.Context, bet *domain.Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.bets[bet.RoomID]
	if room == nil {
		room = make(map[string]*domain.Bet)
		r.bets[bet.RoomID] = room
	}
	cp := *bet
	room[bet.BetID] = &cp
	r.queue[bet.RoomID] = append(r.queue[bet.RoomID], bet.BetID)
	return nil
}

func (r *BetRepository) Get(ctx context.Context, roomID, betID string) (*domain.Bet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bet, ok := r.bets[roomID][betID]
	if !ok {
		return nil, nil
	}
	cp := *bet
	return &cp, nil
}

func (r *BetRepository) Delete(ctx context.Context, roomID, betID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The queue entry stays; the settlement drain skips ids with no data.
	delete(r.bets[roomID], betID)
	return nil
}

func (r *BetRepository) ListMemberBets(ctx context.Context, roomID string, roundID int, memberID string) ([]*domain.Bet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bets := make([]*domain.Bet, 0)
	for _, betID := range r.queue[roomID] {
		bet, ok := r.bets[roomID][betID]
		if !ok || bet.RoundID != roundID || bet.MemberID != memberID {
			continue
		}
		cp := *bet
		bets = append(bets, &cp)
	}
	return bets, nil
}

func (r *BetRepository) TakeForSettlement(ctx context.Context, roomID string, roundID int) ([]*domain.Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.queue[roomID]
	if len(ids) == 0 {
		return nil, nil
	}
	delete(r.queue, roomID)

	bets := make([]*domain.Bet, 0, len(ids))
	for _, betID := range ids {
		bet, ok := r.bets[roomID][betID]
		if !ok || bet.RoundID != roundID {
			continue
		}
		delete(r.bets[roomID], betID)
		cp := *bet
		bets = append(bets, &cp)
	}
	return bets, nil
}

func (r *BetRepository) ClearRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.bets, roomID)
	delete(r.queue, roomID)
	return nil
}
