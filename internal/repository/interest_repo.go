package repository

import (
	"context"
	"errors"

	"fundhub/internal/domain"
	"fundhub/internal/models"

	"gorm.io/gorm"
)

const interestConfigID = 1

type InterestRepository struct {
	db *gorm.DB
}

func NewInterestRepository(db *gorm.DB) *InterestRepository {
	return &InterestRepository{db: db}
}

func (r *InterestRepository) WithTx(tx *gorm.DB) *InterestRepository {
	return &InterestRepository{db: tx}
}

func (r *InterestRepository) GetConfig(ctx context.Context) (*models.InterestConfig, error) {
	var c models.InterestConfig
	err := r.db.WithContext(ctx).First(&c, interestConfigID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig upserts the singleton row.
func (r *InterestRepository) SaveConfig(ctx context.Context, c *models.InterestConfig) error {
	c.ID = interestConfigID
	return r.db.WithContext(ctx).Save(c).Error
}

// CreateHistory fails with domain.ErrAlreadyAccrued when the user already
// has an entry for the accrual date.
func (r *InterestRepository) CreateHistory(ctx context.Context, e *models.InterestHistoryEntry) error {
	err := r.db.WithContext(ctx).Create(e).Error
	if isDuplicateKey(err) {
		return domain.ErrAlreadyAccrued
	}
	return err
}

func (r *InterestRepository) ListHistory(ctx context.Context, userID string, limit, offset int) ([]models.InterestHistoryEntry, error) {
	var list []models.InterestHistoryEntry
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("accrual_date DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
