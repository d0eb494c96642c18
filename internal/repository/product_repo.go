package repository

import (
	"context"
	"errors"

	"fundhub/internal/models"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// GetByID returns nil, nil for an unknown product; callers fall back to ids.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// OwnsAny reports whether designerID owns at least one of productIDs.
func (r *ProductRepository) OwnsAny(ctx context.Context, designerID string, productIDs []string) (bool, error) {
	if len(productIDs) == 0 {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("designer_id = ? AND id IN ?", designerID, productIDs).
		Count(&n).Error
	return n > 0, err
}
