// Package usecase implements the room lifecycle: membership, the bet
// ledger, round transitions, settlement and dealer rotation. Every mutation
// of one room runs under that room's handle, so concurrent operations never
// interleave their read-modify-write sequences.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/machine"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// RoomUseCase drives all room operations against the repositories and
// broadcasts the resulting events in mutation order.
type RoomUseCase struct {
	rooms  domain.RoomRepository
	bets   domain.BetRepository
	orders domain.BetOrderRepository
	rounds domain.RoundRepository
	bc     domain.Broadcaster
	sm     *machine.StateMachine

	// GraceWindow is how long a room may sit with no online members
	// before the cleanup sweep finishes it.
	GraceWindow time.Duration
	// Retention is how long finished rooms are kept before deletion.
	Retention time.Duration

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.Mutex
	handles map[string]*sync.Mutex
}

// NewRoomUseCase creates the use case. The state machine is attached
// afterwards via SetStateMachine to resolve the circular dependency with
// the machine's driver.
func NewRoomUseCase(
	rooms domain.RoomRepository,
	bets domain.BetRepository,
	orders domain.BetOrderRepository,
	rounds domain.RoundRepository,
	bc domain.Broadcaster,
) *RoomUseCase {
	return &RoomUseCase{
		rooms:       rooms,
		bets:        bets,
		orders:      orders,
		rounds:      rounds,
		bc:          bc,
		GraceWindow: time.Minute,
		Retention:   24 * time.Hour,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		handles:     make(map[string]*sync.Mutex),
	}
}

// SetStateMachine attaches the round state machine.
func (uc *RoomUseCase) SetStateMachine(sm *machine.StateMachine) {
	uc.sm = sm
}

func (uc *RoomUseCase) handle(roomID string) *sync.Mutex {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	h, ok := uc.handles[roomID]
	if !ok {
		h = &sync.Mutex{}
		uc.handles[roomID] = h
	}
	return h
}

func (uc *RoomUseCase) dropHandle(roomID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.handles, roomID)
}

// events collects broadcasts queued during a mutation; they are flushed
// only after the room commits, still under the room handle, which keeps
// event order equal to mutation order.
type events struct {
	list []queuedEvent
}

type queuedEvent struct {
	memberID string // empty for room-wide broadcast
	event    string
	data     interface{}
}

func (e *events) broadcast(event string, data interface{}) {
	e.list = append(e.list, queuedEvent{event: event, data: data})
}

func (e *events) toMember(memberID, event string, data interface{}) {
	e.list = append(e.list, queuedEvent{memberID: memberID, event: event, data: data})
}

func (e *events) flush(bc domain.Broadcaster, roomID string) {
	for _, ev := range e.list {
		if ev.memberID == "" {
			bc.BroadcastRoom(roomID, ev.event, ev.data)
		} else {
			bc.SendToMember(roomID, ev.memberID, ev.event, ev.data)
		}
	}
	e.list = nil
}

// withRoom loads the room, runs fn under the room handle and commits with a
// version check. Queued events flush after the commit.
func (uc *RoomUseCase) withRoom(ctx context.Context, roomID string, fn func(room *domain.Room, ev *events) error) error {
	h := uc.handle(roomID)
	h.Lock()
	defer h.Unlock()

	room, err := uc.rooms.Load(ctx, roomID)
	if err != nil {
		return err
	}

	ev := &events{}
	if err := fn(room, ev); err != nil {
		return err
	}

	if err := uc.rooms.SaveAtomic(ctx, room, room.Version); err != nil {
		return fmt.Errorf("%w: save room %s: %v", domain.ErrSystem, roomID, err)
	}

	ev.flush(uc.bc, roomID)
	return nil
}

// MemberProfile is the caller-supplied identity and display data.
type MemberProfile struct {
	MemberID string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// Join adds a member to a room, creating the room when a config is supplied
// (host path). Rejoining with a known member id only refreshes the
// connection id, so balances and the dealer seat survive reconnects.
func (uc *RoomUseCase) Join(ctx context.Context, roomID, connID string, profile MemberProfile, cfg *domain.Config) (*RoomView, error) {
	h := uc.handle(roomID)
	h.Lock()
	defer h.Unlock()

	room, err := uc.rooms.Load(ctx, roomID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if cfg == nil {
			return nil, fmt.Errorf("%w: room %s does not exist", domain.ErrNotFound, roomID)
		}
		room = domain.NewRoom(roomID, profile.MemberID, *cfg)
		logger.Info(ctx).
			Str("room_id", roomID).
			Str("host_id", profile.MemberID).
			Msg("room created")
	case err != nil:
		return nil, err
	case room.Status == domain.StatusFinished:
		return nil, fmt.Errorf("%w: room %s has finished", domain.ErrNotFound, roomID)
	}

	if m := room.FindMember(profile.MemberID); m != nil {
		m.ConnID = connID
		m.Online = true
		if m.Nickname == "" {
			m.Nickname = profile.Nickname
		}
		logger.Info(ctx).
			Str("room_id", roomID).
			Str("member_id", profile.MemberID).
			Msg("member rejoined")
	} else {
		if len(room.Members) >= room.Config.MaxPlayers {
			return nil, fmt.Errorf("%w: room %s is full", domain.ErrValidation, roomID)
		}
		room.Members = append(room.Members, &domain.Member{
			MemberID:    profile.MemberID,
			Nickname:    profile.Nickname,
			Avatar:      profile.Avatar,
			ConnID:      connID,
			InitBalance: room.Config.StartingBalance,
			Balance:     room.Config.StartingBalance,
			Online:      true,
		})
		logger.Info(ctx).
			Str("room_id", roomID).
			Str("member_id", profile.MemberID).
			Int("members", len(room.Members)).
			Msg("member joined")
	}
	room.EmptySince = time.Time{}

	if err := uc.rooms.SaveAtomic(ctx, room, room.Version); err != nil {
		return nil, fmt.Errorf("%w: save room %s: %v", domain.ErrSystem, roomID, err)
	}

	view := uc.newRoomView(room)
	uc.bc.BroadcastRoom(roomID, domain.EventRoomUpdate, view)
	return view, nil
}

// MarkOffline handles both explicit leave and transport disconnect: the
// member stays in the sequence with its balance; only its presence changes.
// When the last online member drops, the empty-room grace clock starts.
func (uc *RoomUseCase) MarkOffline(ctx context.Context, roomID, memberID string) error {
	return uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
		m := room.FindMember(memberID)
		if m == nil {
			return fmt.Errorf("%w: member %s not in room %s", domain.ErrNotFound, memberID, roomID)
		}
		m.Online = false
		m.ConnID = ""
		if room.OnlineCount() == 0 && room.EmptySince.IsZero() {
			room.EmptySince = time.Now()
		}
		ev.broadcast(domain.EventRoomUpdate, uc.newRoomView(room))
		logger.Info(ctx).
			Str("room_id", roomID).
			Str("member_id", memberID).
			Msg("member offline")
		return nil
	})
}

// CleanupSweep finishes rooms that sat empty past the grace window and
// drops finished rooms past retention. Run periodically.
func (uc *RoomUseCase) CleanupSweep(ctx context.Context) {
	ids, err := uc.rooms.IDs(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("cleanup sweep: list rooms")
		return
	}

	now := time.Now()
	for _, roomID := range ids {
		var finished, expired bool
		err := uc.withRoom(ctx, roomID, func(room *domain.Room, ev *events) error {
			if room.Status == domain.StatusFinished {
				expired = now.Sub(room.CreatedAt) > uc.Retention
				return nil
			}
			if room.OnlineCount() == 0 && !room.EmptySince.IsZero() && now.Sub(room.EmptySince) > uc.GraceWindow {
				room.Status = domain.StatusFinished
				finished = true
			}
			return nil
		})
		if err != nil {
			logger.Warn(ctx).Err(err).Str("room_id", roomID).Msg("cleanup sweep: room")
			continue
		}

		if finished {
			uc.sm.StopRoom(roomID)
			if err := uc.bets.ClearRoom(ctx, roomID); err != nil {
				logger.Warn(ctx).Err(err).Str("room_id", roomID).Msg("cleanup sweep: clear bets")
			}
			logger.Info(ctx).Str("room_id", roomID).Msg("room finished after grace window")
		}
		if expired {
			if err := uc.rooms.Delete(ctx, roomID); err != nil {
				logger.Warn(ctx).Err(err).Str("room_id", roomID).Msg("cleanup sweep: delete room")
				continue
			}
			uc.dropHandle(roomID)
		}
	}
}

// RoomSummary is the lightweight listing entry for a room.
type RoomSummary struct {
	ID      string        `json:"id"`
	Players int           `json:"players"`
	Avatars []string      `json:"avatars"`
	Status  domain.Status `json:"status"`
}

// RoomsInfo returns summaries for the given ids, skipping finished and
// unknown rooms.
func (uc *RoomUseCase) RoomsInfo(ctx context.Context, roomIDs []string) ([]RoomSummary, error) {
	rooms, err := uc.rooms.ListByIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	infos := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		if room.Status == domain.StatusFinished {
			continue
		}
		avatars := make([]string, 0, 3)
		for _, m := range room.Members {
			if len(avatars) == 3 {
				break
			}
			avatars = append(avatars, m.Avatar)
		}
		infos = append(infos, RoomSummary{
			ID:      room.RoomID,
			Players: len(room.Members),
			Avatars: avatars,
			Status:  room.Status,
		})
	}
	return infos, nil
}

// GetRoomView returns the current read model of a room.
func (uc *RoomUseCase) GetRoomView(ctx context.Context, roomID string) (*RoomView, error) {
	h := uc.handle(roomID)
	h.Lock()
	defer h.Unlock()

	room, err := uc.rooms.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return uc.newRoomView(room), nil
}

func (uc *RoomUseCase) roll() domain.Result {
	uc.rndMu.Lock()
	defer uc.rndMu.Unlock()
	return domain.RollResult(uc.rnd)
}
