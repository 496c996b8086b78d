package repository

import (
	"ielts_backend/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) FindByID(id uint) (*model.Test, error) {
	var t model.Test
	if err := r.DB.Preload("Sections", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_num ASC")
	}).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TestRepository) FindByIDWithQuestions(id uint) (*model.Test, error) {
	var t model.Test
	err := r.DB.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TestRepository) ListPublished(module string, page, limit int) ([]model.Test, int64, error) {
	var tests []model.Test
	var total int64

	query := r.DB.Model(&model.Test{}).Where("is_published = ?", true)
	if module != "" {
		query = query.Where("module = ?", module)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page > 0 && limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	if err := query.Order("id DESC").Find(&tests).Error; err != nil {
		return nil, 0, err
	}
	return tests, total, nil
}
