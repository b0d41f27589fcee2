// Package db provides gorm-backed repositories for the settled history.
package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

type BetOrderRepository struct {
	db *gorm.DB
}

func NewBetOrderRepository(db *gorm.DB) *BetOrderRepository {
	return &BetOrderRepository{db: db}
}

func (r *BetOrderRepository) BatchCreate(ctx context.Context, orders []*domain.BetOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&orders).Error
}

func (r *BetOrderRepository) List(ctx context.Context, q domain.BetOrderQuery) ([]*domain.BetOrder, int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.BetOrder{})
	if q.RoomID != "" {
		tx = tx.Where("room_id = ?", q.RoomID)
	}
	if q.MemberID != "" {
		tx = tx.Where("member_id = ?", q.MemberID)
	}
	if q.RoundID > 0 {
		tx = tx.Where("round_id = ?", q.RoundID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*domain.BetOrder
	err := tx.Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
