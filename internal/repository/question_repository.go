package repository

import (
	"ielts_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// FindByTestID returns all questions of a test in section/question order.
func (r *QuestionRepository) FindByTestID(testID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.
		Joins("JOIN sections ON sections.id = questions.section_id").
		Where("sections.test_id = ?", testID).
		Order("sections.order_num ASC, questions.order_num ASC").
		Find(&questions).Error
	return questions, err
}
