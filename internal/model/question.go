package model

// QuestionType drives both the answer shape (scalar vs keyed sub-answers) and
// the comparator the grading engine applies. The shape is declared here, never
// inferred from the submitted payload.
type QuestionType string

const (
	MultipleChoice      QuestionType = "multiple_choice"
	ShortAnswer         QuestionType = "short_answer"
	SentenceCompletion  QuestionType = "sentence_completion"
	SummaryCompletion   QuestionType = "summary_completion"
	TrueFalseNotGiven   QuestionType = "true_false_not_given"
	YesNoNotGiven       QuestionType = "yes_no_not_given"
	TableCompletion     QuestionType = "table_completion"
	MatchingHeadings    QuestionType = "matching_headings"
	MatchingInformation QuestionType = "matching_information"
	MatchingFeatures    QuestionType = "matching_features"
	MapLabeling         QuestionType = "map_labeling"
	EssayTask           QuestionType = "essay_task"
	SpeakingPrompt      QuestionType = "speaking_prompt"
)

// IsComposite reports whether the type holds independently gradable sub-items.
func (t QuestionType) IsComposite() bool {
	switch t {
	case TableCompletion, MatchingHeadings, MatchingInformation, MatchingFeatures, MapLabeling:
		return true
	}
	return false
}

// swagger:model Question
type Question struct {
	BaseModel
	SectionID    uint         `gorm:"index;type:bigint unsigned" json:"sectionId"`
	QuestionType QuestionType `gorm:"size:40;not null" json:"questionType"`
	Text         string       `gorm:"type:text" json:"text"`
	// Options holds a JSON array of choices for choice-based types.
	Options string `gorm:"type:json" json:"options,omitempty"`
	// CorrectAnswer is the canonical answer for scalar types. For composite
	// types it holds a JSON object mapping sub-item label to correct answer.
	CorrectAnswer string `gorm:"type:json" json:"-"`
	// AlternativeAnswers is a JSON array of additional accepted answers
	// (scalar types only).
	AlternativeAnswers string `gorm:"type:json" json:"-"`
	MaxScore           int    `gorm:"default:1" json:"maxScore"`
	Order              int    `gorm:"column:order_num" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}
