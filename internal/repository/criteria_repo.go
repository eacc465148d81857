package repository

import (
	"context"
	"errors"

	"marketledger/internal/model"

	"gorm.io/gorm"
)

var ErrCriteriaNotFound = errors.New("运营配置项不存在")

// CriteriaRepository 运营配置只读仓储
type CriteriaRepository struct {
	db *gorm.DB
}

func NewCriteriaRepository(db *gorm.DB) *CriteriaRepository {
	return &CriteriaRepository{db: db}
}

func (r *CriteriaRepository) GetValue(ctx context.Context, key string) (string, error) {
	var criteria model.Criteria
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&criteria).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCriteriaNotFound
		}
		return "", err
	}
	return criteria.Value, nil
}
