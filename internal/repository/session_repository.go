package repository

import (
	"errors"
	"time"

	"ielts_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(session *model.TestSession) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) Update(session *model.TestSession) error {
	return r.DB.Save(session).Error
}

// FindByID returns (nil, nil) when the session does not exist.
func (r *SessionRepository) FindByID(id uint) (*model.TestSession, error) {
	var s model.TestSession
	if err := r.DB.Preload("Answers").First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindActiveByUserAndTest looks up the single resumable session for a
// (user, test) pair, if any. Backs the one-active-session invariant.
func (r *SessionRepository) FindActiveByUserAndTest(userID, testID uint) (*model.TestSession, error) {
	var s model.TestSession
	err := r.DB.Preload("Answers").
		Where("user_id = ? AND test_id = ? AND status IN ?", userID, testID,
			[]model.SessionStatus{model.SessionPending, model.SessionInProgress}).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// SaveAnswers bulk-upserts the full answer set of a session. Replaying the
// same batch yields the same rows (last write wins per question), so autosave
// and the final pre-submit flush can safely overlap.
func (r *SessionRepository) SaveAnswers(sessionID uint, answers []model.SessionAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	for i := range answers {
		answers[i].SessionID = sessionID
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"raw_value", "time_spent_seconds", "updated_at"}),
	}).Create(&answers).Error
}

// FindOverdue lists active sessions whose deadline has already passed, e.g.
// sessions orphaned by a restart before their timer could fire.
func (r *SessionRepository) FindOverdue(now time.Time) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.DB.
		Where("status IN ? AND deadline_at < ?",
			[]model.SessionStatus{model.SessionPending, model.SessionInProgress}, now).
		Find(&sessions).Error
	return sessions, err
}
