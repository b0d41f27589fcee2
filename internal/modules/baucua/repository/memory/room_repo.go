// Package memory provides in-process repositories, the default for single
// node deployments and for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

// RoomRepository implements domain.RoomRepository on a map. Load hands out a
// deep copy, so the stored state changes only through SaveAtomic.
type RoomRepository struct {
	rooms map[string]*domain.Room
	mu    sync.RWMutex
}

// NewRoomRepository creates an empty room repository.
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{rooms: make(map[string]*domain.Room)}
}

func (r *RoomRepository) Load(ctx context.Context, roomID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	return room.Clone(), nil
}

func (r *RoomRepository) SaveAtomic(ctx context.Context, room *domain.Room, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.rooms[room.RoomID]; ok && stored.Version != expectedVersion {
		return fmt.Errorf("room %s version conflict: have %d, expected %d", room.RoomID, stored.Version, expectedVersion)
	}

	room.Version = expectedVersion + 1
	r.rooms[room.RoomID] = room.Clone()
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
	return nil
}

func (r *RoomRepository) ListByIDs(ctx context.Context, roomIDs []string) ([]*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(roomIDs))
	for _, id := range roomIDs {
		if room, ok := r.rooms[id]; ok {
			rooms = append(rooms, room.Clone())
		}
	}
	return rooms, nil
}

func (r *RoomRepository) IDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids, nil
}
