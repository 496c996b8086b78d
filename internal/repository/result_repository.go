package repository

import (
	"errors"

	"ielts_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) Create(result *model.Result) error {
	return r.DB.Create(result).Error
}

func (r *ResultRepository) Update(result *model.Result) error {
	return r.DB.Save(result).Error
}

// FindByID returns (nil, nil) when the result does not exist.
func (r *ResultRepository) FindByID(id uint) (*model.Result, error) {
	var res model.Result
	if err := r.DB.First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// FindBySessionID returns (nil, nil) when the session has no result yet.
func (r *ResultRepository) FindBySessionID(sessionID uint) (*model.Result, error) {
	var res model.Result
	if err := r.DB.Where("session_id = ?", sessionID).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *ResultRepository) ListByUser(userID uint, page, limit int) ([]model.Result, int64, error) {
	var results []model.Result
	var total int64

	query := r.DB.Model(&model.Result{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page > 0 && limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	if err := query.Order("id DESC").Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *ResultRepository) FindByIDs(ids []uint) ([]model.Result, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var results []model.Result
	err := r.DB.Where("id IN ?", ids).Find(&results).Error
	return results, err
}
