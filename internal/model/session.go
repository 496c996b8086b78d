package model

import "time"

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
)

// IsTerminal reports whether the session can no longer accept answers or a
// second submission.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionExpired
}

func (s SessionStatus) IsActive() bool {
	return s == SessionPending || s == SessionInProgress
}

// TestSession is one timed attempt of a test by a user. At most one active
// (pending/in_progress) session may exist per (user, test); sessions are never
// deleted, only transitioned to a terminal status.
// swagger:model TestSession
type TestSession struct {
	BaseModel
	TestID      uint            `gorm:"index;type:bigint unsigned;not null" json:"testId"`
	UserID      uint            `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	Module      TestModule      `gorm:"size:20" json:"module"`
	Status      SessionStatus   `gorm:"type:enum('pending','in_progress','completed','expired');default:'pending';index" json:"status"`
	StartedAt   time.Time       `json:"startedAt"`
	DeadlineAt  time.Time       `json:"deadlineAt"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
	ResultID    *uint           `gorm:"type:bigint unsigned" json:"resultId,omitempty"`
	Answers     []SessionAnswer `gorm:"foreignKey:SessionID" json:"answers,omitempty"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// SessionAnswer is the persisted form of one answer, keyed by question within
// its session. RawValue carries the encoded AnswerValue; upserts are
// last-write-wins per question.
// swagger:model SessionAnswer
type SessionAnswer struct {
	BaseModel
	SessionID        uint   `gorm:"uniqueIndex:idx_session_question;type:bigint unsigned;not null" json:"sessionId"`
	QuestionID       uint   `gorm:"uniqueIndex:idx_session_question;type:bigint unsigned;not null" json:"questionId"`
	RawValue         string `gorm:"type:json" json:"rawValue"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

func (SessionAnswer) TableName() string {
	return "session_answers"
}
