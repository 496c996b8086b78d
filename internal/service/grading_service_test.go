package service

import (
	"context"
	"encoding/json"
	"testing"

	"ielts_backend/internal/config"
	"ielts_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "PARIS", "paris"},
		{"strips punctuation", "paris.", "paris"},
		{"collapses whitespace", "  the   eiffel   tower ", "eiffel tower"},
		{"drops leading article the", "The dog", "dog"},
		{"drops leading article a", "a cat", "cat"},
		{"drops leading article an", "an apple", "apple"},
		{"keeps article when it is the whole answer", "the", "the"},
		{"drops only one article", "the the answer", "the answer"},
		{"keeps internal articles", "end of the road", "end of the road"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAnswer(tt.in))
		})
	}
}

func TestNewBandTable(t *testing.T) {
	bandFor := NewBandTable([]config.BandBreakpoint{
		{MinPercentage: 0, Band: 1},
		{MinPercentage: 50, Band: 5.5},
		{MinPercentage: 90, Band: 8},
	})

	assert.Equal(t, 8.0, bandFor(96))
	assert.Equal(t, 8.0, bandFor(90))
	assert.Equal(t, 5.5, bandFor(89))
	assert.Equal(t, 5.5, bandFor(50))
	assert.Equal(t, 1.0, bandFor(10))
	assert.Equal(t, 1.0, bandFor(0))
}

func newGradingFixture(t *testing.T) (*GradingService, *fakeResultStore, *fakeReviewQueue) {
	t.Helper()
	results := newFakeResultStore()
	queue := &fakeReviewQueue{}
	return NewGradingService(results, queue, fixedBand(6.5), 50), results, queue
}

func sessionWith(module model.TestModule, answers map[uint]model.AnswerValue) *model.TestSession {
	sess := &model.TestSession{
		BaseModel: model.BaseModel{ID: 10},
		TestID:    1,
		UserID:    7,
		Module:    module,
		Status:    model.SessionCompleted,
	}
	for qid, v := range answers {
		sess.Answers = append(sess.Answers, model.SessionAnswer{
			SessionID:  sess.ID,
			QuestionID: qid,
			RawValue:   v.Encode(),
		})
	}
	return sess
}

func TestGradeScalarNormalization(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	questions := []model.Question{
		scalarQuestion(1, model.ShortAnswer, `"Paris"`, ""),
		scalarQuestion(2, model.ShortAnswer, `"water cycle"`, `["the water cycle","hydrological cycle"]`),
		scalarQuestion(3, model.TrueFalseNotGiven, `"not given"`, ""),
	}
	sess := sessionWith(model.ModuleReading, map[uint]model.AnswerValue{
		1: model.ScalarAnswer("  the PARIS. "),
		2: model.ScalarAnswer("Hydrological Cycle"),
		3: model.ScalarAnswer("false"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, 2, result.CorrectAnswers)
	assert.Equal(t, 1, result.IncorrectAnswers)
	assert.Equal(t, 67, result.Percentage)
	require.NotNil(t, result.BandScore)
	assert.Equal(t, 6.5, *result.BandScore)
	assert.False(t, result.IsManuallyGraded)
}

func TestGradeCompositePartialCredit(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	questions := []model.Question{
		{
			BaseModel:     model.BaseModel{ID: 1},
			QuestionType:  model.MatchingHeadings,
			CorrectAnswer: `{"A":"cat","B":"dog"}`,
			MaxScore:      2,
		},
		scalarQuestion(2, model.ShortAnswer, `"sun"`, ""),
	}
	sess := sessionWith(model.ModuleReading, map[uint]model.AnswerValue{
		1: model.CompositeAnswer(map[string]string{"A": "cat", "B": "fox"}),
		2: model.ScalarAnswer("sun"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)

	// half the composite's 2 points plus the scalar point: 2 of 3
	assert.Equal(t, 67, result.Percentage)
	// a partially correct composite never counts as a correct answer
	assert.Equal(t, 1, result.CorrectAnswers)
	assert.Equal(t, 1, result.IncorrectAnswers)
}

func TestGradeFullyCorrectComposite(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	questions := []model.Question{
		{
			BaseModel:     model.BaseModel{ID: 1},
			QuestionType:  model.TableCompletion,
			CorrectAnswer: `{"1":"ten","2":"twenty"}`,
			MaxScore:      2,
		},
	}
	sess := sessionWith(model.ModuleListening, map[uint]model.AnswerValue{
		1: model.CompositeAnswer(map[string]string{"1": "Ten", "2": " twenty."}),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)

	assert.Equal(t, 100, result.Percentage)
	assert.Equal(t, 1, result.CorrectAnswers)
}

func TestGradeUnansweredAndMalformed(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	questions := []model.Question{
		scalarQuestion(1, model.ShortAnswer, `"moon"`, ""),
		scalarQuestion(2, model.ShortAnswer, "", ""), // empty answer key
		scalarQuestion(3, model.ShortAnswer, `"star"`, ""),
	}
	sess := sessionWith(model.ModuleReading, map[uint]model.AnswerValue{
		3: model.ScalarAnswer("star"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)

	// the broken answer key costs only its own item
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, 1, result.CorrectAnswers)
	assert.Equal(t, 33, result.Percentage)
}

func TestGradeRejectsShapeMismatch(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	questions := []model.Question{
		{
			BaseModel:     model.BaseModel{ID: 1},
			QuestionType:  model.MatchingHeadings,
			CorrectAnswer: `{"A":"cat"}`,
			MaxScore:      1,
		},
	}
	// scalar payload recorded against a composite question type
	sess := sessionWith(model.ModuleReading, map[uint]model.AnswerValue{
		1: model.ScalarAnswer("cat"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CorrectAnswers)
	assert.Equal(t, 0, result.Percentage)
}

func TestGradeTypeBreakdownAndWeakAreas(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	questions := []model.Question{
		scalarQuestion(1, model.MultipleChoice, `"b"`, ""),
		scalarQuestion(2, model.MultipleChoice, `"c"`, ""),
		scalarQuestion(3, model.ShortAnswer, `"tide"`, ""),
	}
	sess := sessionWith(model.ModuleListening, map[uint]model.AnswerValue{
		1: model.ScalarAnswer("a"),
		2: model.ScalarAnswer("a"),
		3: model.ScalarAnswer("tide"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)

	var breakdown map[model.QuestionType]TypeStat
	require.NoError(t, json.Unmarshal([]byte(result.TypeBreakdown), &breakdown))
	assert.Equal(t, TypeStat{Correct: 0, Total: 2, Percentage: 0}, breakdown[model.MultipleChoice])
	assert.Equal(t, TypeStat{Correct: 1, Total: 1, Percentage: 100}, breakdown[model.ShortAnswer])

	var weak []string
	require.NoError(t, json.Unmarshal([]byte(result.WeakAreas), &weak))
	assert.Equal(t, []string{string(model.MultipleChoice)}, weak)

	var recs []string
	require.NoError(t, json.Unmarshal([]byte(result.Recommendations), &recs))
	assert.Len(t, recs, 1)
}

func TestGradeManualModuleCreatesPendingResult(t *testing.T) {
	svc, results, queue := newGradingFixture(t)

	questions := []model.Question{
		{BaseModel: model.BaseModel{ID: 1}, QuestionType: model.EssayTask},
	}
	sess := sessionWith(model.ModuleWriting, map[uint]model.AnswerValue{
		1: model.ScalarAnswer("my essay text"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)

	assert.True(t, result.IsManuallyGraded)
	assert.Nil(t, result.BandScore)
	assert.Equal(t, 1, result.TotalQuestions)

	stored, err := results.FindBySessionID(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	pending, err := queue.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint{result.ID}, pending)
}

func TestGradePlainTextAnswerKey(t *testing.T) {
	svc, _, _ := newGradingFixture(t)

	// legacy rows store the key as bare text instead of a JSON string
	questions := []model.Question{
		scalarQuestion(1, model.ShortAnswer, "bicycle", ""),
	}
	sess := sessionWith(model.ModuleReading, map[uint]model.AnswerValue{
		1: model.ScalarAnswer("a Bicycle"),
	})

	result, err := svc.Grade(context.Background(), sess, questions)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CorrectAnswers)
}
