package db

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
)

// roundRow is the persisted form of a settled round; the rolled doors are
// stored as a JSON array.
type roundRow struct {
	ID       int64          `gorm:"primaryKey;autoIncrement"`
	RoomID   string         `gorm:"type:varchar(64);not null;index:idx_round_records_room_id"`
	RoundID  int            `gorm:"not null"`
	Result   datatypes.JSON `gorm:"not null"`
	TotalPot int64          `gorm:"not null;default:0"`
	PlayedAt time.Time      `gorm:"not null;index:idx_round_records_played_at"`
}

func (roundRow) TableName() string {
	return "round_records"
}

type RoundRepository struct {
	db *gorm.DB
}

func NewRoundRepository(db *gorm.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

func (r *RoundRepository) Create(ctx context.Context, roomID string, rec domain.RoundRecord) error {
	result, err := json.Marshal(rec.Result.Slice())
	if err != nil {
		return err
	}
	row := &roundRow{
		RoomID:   roomID,
		RoundID:  rec.RoundID,
		Result:   datatypes.JSON(result),
		TotalPot: rec.TotalPot,
		PlayedAt: rec.Time,
	}
	return r.db.WithContext(ctx).Create(row).Error
}
