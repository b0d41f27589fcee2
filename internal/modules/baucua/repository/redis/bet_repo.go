// Package redis provides Redis-backed repositories for deployments that
// need pending bets to survive a process restart.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

const popBatchSize = 100

// BetRepository implements domain.BetRepository using Redis. Bet data lives
// in a per-room hash; the settlement queue is a per-room list of bet ids in
// placement order. Canceled bets are removed from the hash only, so the
// settlement drain skips their queue entries.
type BetRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBetRepository creates a new Redis bet repository.
func NewBetRepository(rdb *redis.Client) *BetRepository {
	return &BetRepository{
		rdb: rdb,
		ttl: 24 * time.Hour,
	}
}

func dataKey(roomID string) string {
	return fmt.Sprintf("bet_data:%s", roomID)
}

func queueKey(roomID string) string {
	return fmt.Sprintf("settle_queue:%s", roomID)
}

func memberKey(roomID, memberID string) string {
	return fmt.Sprintf("member_bets:%s:%s", roomID, memberID)
}

func (r *BetRepository) Save(ctx context.Context, bet *domain.Bet) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()

	pipe.HSet(ctx, dataKey(bet.RoomID), bet.BetID, data)
	pipe.Expire(ctx, dataKey(bet.RoomID), r.ttl)

	pipe.RPush(ctx, queueKey(bet.RoomID), bet.BetID)
	pipe.Expire(ctx, queueKey(bet.RoomID), r.ttl)

	pipe.RPush(ctx, memberKey(bet.RoomID, bet.MemberID), bet.BetID)
	pipe.Expire(ctx, memberKey(bet.RoomID, bet.MemberID), r.ttl)

	_, err = pipe.Exec(ctx)
	return err
}

func (r *BetRepository) Get(ctx context.Context, roomID, betID string) (*domain.Bet, error) {
	data, err := r.rdb.HGet(ctx, dataKey(roomID), betID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var bet domain.Bet
	if err := json.Unmarshal([]byte(data), &bet); err != nil {
		return nil, err
	}
	return &bet, nil
}

func (r *BetRepository) Delete(ctx context.Context, roomID, betID string) error {
	// Queue and member index entries stay; readers skip ids whose data is
	// gone from the hash.
	return r.rdb.HDel(ctx, dataKey(roomID), betID).Err()
}

func (r *BetRepository) ListMemberBets(ctx context.Context, roomID string, roundID int, memberID string) ([]*domain.Bet, error) {
	betIDs, err := r.rdb.LRange(ctx, memberKey(roomID, memberID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(betIDs) == 0 {
		return []*domain.Bet{}, nil
	}

	dataList, err := r.rdb.HMGet(ctx, dataKey(roomID), betIDs...).Result()
	if err != nil {
		return nil, err
	}

	bets := make([]*domain.Bet, 0, len(dataList))
	for _, data := range dataList {
		strData, ok := data.(string)
		if !ok {
			continue
		}
		var bet domain.Bet
		if err := json.Unmarshal([]byte(strData), &bet); err != nil {
			continue
		}
		if bet.RoundID != roundID {
			continue
		}
		bets = append(bets, &bet)
	}
	return bets, nil
}

func (r *BetRepository) TakeForSettlement(ctx context.Context, roomID string, roundID int) ([]*domain.Bet, error) {
	var bets []*domain.Bet

	for {
		betIDs, err := r.rdb.LPopCount(ctx, queueKey(roomID), popBatchSize).Result()
		if err != nil {
			if err == redis.Nil {
				break
			}
			return nil, err
		}
		if len(betIDs) == 0 {
			break
		}

		dataList, err := r.rdb.HMGet(ctx, dataKey(roomID), betIDs...).Result()
		if err != nil {
			return nil, err
		}

		for _, data := range dataList {
			strData, ok := data.(string)
			if !ok {
				continue // canceled before settlement
			}
			var bet domain.Bet
			if err := json.Unmarshal([]byte(strData), &bet); err != nil {
				continue
			}
			if bet.RoundID != roundID {
				continue
			}
			bets = append(bets, &bet)
		}

		if err := r.rdb.HDel(ctx, dataKey(roomID), betIDs...).Err(); err != nil {
			return nil, err
		}
	}

	return bets, nil
}

func (r *BetRepository) ClearRoom(ctx context.Context, roomID string) error {
	// Member index keys expire on their own; listing them here would need a
	// scan.
	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, dataKey(roomID))
	pipe.Del(ctx, queueKey(roomID))
	_, err := pipe.Exec(ctx)
	return err
}
