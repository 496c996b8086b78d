package service

import (
	"context"
	"encoding/json"
	"testing"

	"ielts_backend/internal/model"
	"ielts_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundToHalf(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{6.5, 6.5},
		{6.25, 6.0}, // tie goes to the even half-step
		{6.26, 6.5},
		{6.24, 6.0},
		{6.74, 6.5},
		{6.75, 7.0},
		{0, 0},
		{9, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundToHalf(tt.in), "RoundToHalf(%v)", tt.in)
	}
}

func newReviewFixture(t *testing.T, module model.TestModule) (*ReviewService, *fakeResultStore, *fakeReviewQueue, uint) {
	t.Helper()
	results := newFakeResultStore()
	queue := &fakeReviewQueue{}

	pending := &model.Result{
		SessionID:        10,
		UserID:           7,
		Module:           module,
		IsManuallyGraded: true,
	}
	require.NoError(t, results.Create(pending))
	require.NoError(t, queue.Enqueue(context.Background(), pending.ID))

	return NewReviewService(results, queue), results, queue, pending.ID
}

func TestSubmitGradeFromRubric(t *testing.T) {
	tests := []struct {
		name   string
		rubric model.RubricScores
		want   float64
	}{
		{"mixed halves round up", model.RubricScores{TaskAchievement: 6, CoherenceCohesion: 7, LexicalResource: 6, GrammaticalRange: 7}, 6.5},
		{"quarter boundary ties down to even", model.RubricScores{TaskAchievement: 5, CoherenceCohesion: 5, LexicalResource: 5, GrammaticalRange: 6}, 5.0},
		{"three quarters rounds to eight", model.RubricScores{TaskAchievement: 8, CoherenceCohesion: 8, LexicalResource: 7, GrammaticalRange: 8}, 8.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, queue, resultID := newReviewFixture(t, model.ModuleWriting)

			rubric := tt.rubric
			graded, err := svc.SubmitGrade(context.Background(), 42, resultID, GradeRequest{
				Rubric: &rubric,
				Notes:  "solid structure, weak cohesion in task 2",
			})
			require.NoError(t, err)

			require.NotNil(t, graded.BandScore)
			assert.Equal(t, tt.want, *graded.BandScore)
			require.NotNil(t, graded.ReviewedBy)
			assert.Equal(t, uint(42), *graded.ReviewedBy)
			assert.NotNil(t, graded.ReviewedAt)

			require.NotNil(t, graded.WritingScores)
			var stored model.RubricScores
			require.NoError(t, json.Unmarshal([]byte(*graded.WritingScores), &stored))
			assert.Equal(t, rubric, stored)

			ids, err := queue.Pending(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestSubmitGradeSpeakingStoresSpeakingScores(t *testing.T) {
	svc, _, _, resultID := newReviewFixture(t, model.ModuleSpeaking)

	rubric := model.RubricScores{TaskAchievement: 6, CoherenceCohesion: 6, LexicalResource: 6.5, GrammaticalRange: 6.5}
	graded, err := svc.SubmitGrade(context.Background(), 42, resultID, GradeRequest{
		Rubric: &rubric,
		Notes:  "good fluency, limited vocabulary range",
	})
	require.NoError(t, err)
	assert.Nil(t, graded.WritingScores)
	assert.NotNil(t, graded.SpeakingScores)
}

func TestSubmitGradeDirectBand(t *testing.T) {
	svc, _, _, resultID := newReviewFixture(t, model.ModuleWriting)

	band := 7.5
	graded, err := svc.SubmitGrade(context.Background(), 42, resultID, GradeRequest{
		BandScore: &band,
		Notes:     "moderated after second read",
	})
	require.NoError(t, err)
	require.NotNil(t, graded.BandScore)
	assert.Equal(t, 7.5, *graded.BandScore)
	assert.Nil(t, graded.WritingScores)
}

func TestSubmitGradeValidation(t *testing.T) {
	badBand := 9.5
	offStep := 6.3
	badRubric := model.RubricScores{TaskAchievement: 6.3, CoherenceCohesion: 6, LexicalResource: 6, GrammaticalRange: 6}

	tests := []struct {
		name string
		req  GradeRequest
	}{
		{"empty notes", GradeRequest{BandScore: &badBand}},
		{"no rubric and no band", GradeRequest{Notes: "graded"}},
		{"band above scale", GradeRequest{BandScore: &badBand, Notes: "graded"}},
		{"band off half step", GradeRequest{BandScore: &offStep, Notes: "graded"}},
		{"rubric criterion off half step", GradeRequest{Rubric: &badRubric, Notes: "graded"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, resultID := newReviewFixture(t, model.ModuleWriting)

			_, err := svc.SubmitGrade(context.Background(), 42, resultID, tt.req)
			require.Error(t, err)
			assert.True(t, util.IsValidationError(err))
		})
	}
}

func newAutoGradedResult(t *testing.T, results *fakeResultStore) *model.Result {
	t.Helper()
	band := 6.0
	auto := &model.Result{SessionID: 11, Module: model.ModuleReading, BandScore: &band}
	require.NoError(t, results.Create(auto))
	return auto
}

func TestSubmitGradeRejectsRubricOnAutoGradedResult(t *testing.T) {
	results := newFakeResultStore()
	auto := newAutoGradedResult(t, results)

	svc := NewReviewService(results, &fakeReviewQueue{})
	rubric := model.RubricScores{TaskAchievement: 6, CoherenceCohesion: 6, LexicalResource: 6, GrammaticalRange: 6}
	_, err := svc.SubmitGrade(context.Background(), 42, auto.ID, GradeRequest{
		Rubric:           &rubric,
		Notes:            "x",
		ConfirmOverwrite: true,
	})
	require.Error(t, err)
	assert.True(t, util.IsStateError(err))
}

func TestSubmitGradeOverridesAutoGradedBand(t *testing.T) {
	results := newFakeResultStore()
	auto := newAutoGradedResult(t, results)

	svc := NewReviewService(results, &fakeReviewQueue{})
	newBand := 7.0

	// an unconfirmed override never touches the stored band
	_, err := svc.SubmitGrade(context.Background(), 42, auto.ID, GradeRequest{BandScore: &newBand, Notes: "moderation"})
	require.Error(t, err)
	assert.True(t, util.IsValidationError(err))

	graded, err := svc.SubmitGrade(context.Background(), 42, auto.ID, GradeRequest{
		BandScore:        &newBand,
		Notes:            "moderation",
		ConfirmOverwrite: true,
	})
	require.NoError(t, err)
	require.NotNil(t, graded.BandScore)
	assert.Equal(t, 7.0, *graded.BandScore)
	require.NotNil(t, graded.ReviewedBy)
	assert.Equal(t, uint(42), *graded.ReviewedBy)
	assert.False(t, graded.IsManuallyGraded)
}

func TestSubmitGradeMissingResult(t *testing.T) {
	svc := NewReviewService(newFakeResultStore(), &fakeReviewQueue{})
	band := 6.0
	_, err := svc.SubmitGrade(context.Background(), 42, 999, GradeRequest{BandScore: &band, Notes: "x"})
	require.Error(t, err)
	assert.True(t, util.IsNotFoundError(err))
}

func TestRegradeRequiresConfirmation(t *testing.T) {
	svc, _, _, resultID := newReviewFixture(t, model.ModuleWriting)

	band := 6.0
	_, err := svc.SubmitGrade(context.Background(), 42, resultID, GradeRequest{BandScore: &band, Notes: "first pass"})
	require.NoError(t, err)

	higher := 7.0
	_, err = svc.SubmitGrade(context.Background(), 43, resultID, GradeRequest{BandScore: &higher, Notes: "second opinion"})
	require.Error(t, err)
	assert.True(t, util.IsValidationError(err))

	graded, err := svc.SubmitGrade(context.Background(), 43, resultID, GradeRequest{
		BandScore:        &higher,
		Notes:            "second opinion",
		ConfirmOverwrite: true,
	})
	require.NoError(t, err)
	require.NotNil(t, graded.BandScore)
	assert.Equal(t, 7.0, *graded.BandScore)
	require.NotNil(t, graded.ReviewedBy)
	assert.Equal(t, uint(43), *graded.ReviewedBy)
}

func TestPendingReviewsSkipsAlreadyGraded(t *testing.T) {
	results := newFakeResultStore()
	queue := &fakeReviewQueue{}

	first := &model.Result{SessionID: 20, Module: model.ModuleWriting, IsManuallyGraded: true}
	second := &model.Result{SessionID: 21, Module: model.ModuleSpeaking, IsManuallyGraded: true}
	require.NoError(t, results.Create(first))
	require.NoError(t, results.Create(second))
	require.NoError(t, queue.Enqueue(context.Background(), first.ID))
	require.NoError(t, queue.Enqueue(context.Background(), second.ID))

	// first gets graded through another path but stays queued
	band := 6.5
	first.BandScore = &band
	require.NoError(t, results.Update(first))

	svc := NewReviewService(results, queue)
	pending, err := svc.PendingReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}
