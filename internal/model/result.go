package model

import "time"

// RubricScores is the per-criterion breakdown a reviewer assigns to a writing
// or speaking submission. Each criterion is on the 0-9 band scale in 0.5 steps.
type RubricScores struct {
	TaskAchievement   float64 `json:"taskAchievement"`
	CoherenceCohesion float64 `json:"coherenceCohesion"`
	LexicalResource   float64 `json:"lexicalResource"`
	GrammaticalRange  float64 `json:"grammaticalRange"`
}

func (r RubricScores) Criteria() []float64 {
	return []float64{r.TaskAchievement, r.CoherenceCohesion, r.LexicalResource, r.GrammaticalRange}
}

// Result is the graded outcome of one session. Auto-graded modules get a band
// at creation; manually graded modules start with a nil band and are filled in
// by a reviewer, possibly more than once on an explicit re-grade.
// swagger:model Result
type Result struct {
	BaseModel
	SessionID        uint       `gorm:"uniqueIndex;type:bigint unsigned;not null" json:"sessionId"`
	TestID           uint       `gorm:"index;type:bigint unsigned" json:"testId"`
	UserID           uint       `gorm:"index;type:bigint unsigned" json:"userId"`
	Module           TestModule `gorm:"size:20" json:"module"`
	TotalQuestions   int        `json:"totalQuestions"`
	CorrectAnswers   int        `json:"correctAnswers"`
	IncorrectAnswers int        `json:"incorrectAnswers"`
	Percentage       int        `json:"percentage"`
	BandScore        *float64   `json:"bandScore"`
	IsManuallyGraded bool       `gorm:"default:false" json:"isManuallyGraded"`
	// WritingScores / SpeakingScores hold the JSON-encoded RubricScores for the
	// matching module, nil until reviewed.
	WritingScores  *string `gorm:"type:json" json:"writingScores,omitempty"`
	SpeakingScores *string `gorm:"type:json" json:"speakingScores,omitempty"`
	GradingNotes   string  `gorm:"type:text" json:"gradingNotes"`
	ReviewedBy     *uint   `gorm:"type:bigint unsigned" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	// TypeBreakdown is the JSON-encoded per-question-type stats; WeakAreas and
	// Recommendations are JSON arrays derived from it.
	TypeBreakdown   string `gorm:"type:json" json:"typeBreakdown,omitempty"`
	WeakAreas       string `gorm:"type:json" json:"weakAreas,omitempty"`
	Recommendations string `gorm:"type:json" json:"recommendations,omitempty"`
}

func (Result) TableName() string {
	return "results"
}
