package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"ielts_backend/internal/model"
	"ielts_backend/internal/util"
	"ielts_backend/pkg/logger"

	"go.uber.org/zap"
)

type reviewQueue interface {
	Enqueue(ctx context.Context, resultID uint) error
	Remove(ctx context.Context, resultID uint) error
	Pending(ctx context.Context) ([]uint, error)
}

// GradeRequest is a reviewer's judgment of a manually graded result. Either
// Rubric (writing/speaking, band computed from the four criteria) or BandScore
// (direct override) must be set.
type GradeRequest struct {
	BandScore        *float64            `json:"bandScore"`
	Rubric           *model.RubricScores `json:"rubric"`
	Notes            string              `json:"notes"`
	ConfirmOverwrite bool                `json:"confirmOverwrite"`
}

// ReviewService validates and stores human grading decisions. It never
// computes a score on its own beyond averaging the rubric criteria.
type ReviewService struct {
	Results resultStore
	Queue   reviewQueue
}

func NewReviewService(results resultStore, queue reviewQueue) *ReviewService {
	return &ReviewService{Results: results, Queue: queue}
}

// RoundToHalf rounds a band value to the nearest 0.5 step, ties to even so a
// 0.25 boundary does not systematically inflate the band.
func RoundToHalf(x float64) float64 {
	return math.RoundToEven(x*2) / 2
}

func isHalfStep(x float64) bool {
	return x*2 == math.Trunc(x*2)
}

// SubmitGrade applies a reviewer's band and notes to a result. A second grade
// on the same result overwrites the first, but only when the caller explicitly
// confirms the re-grade.
func (s *ReviewService) SubmitGrade(ctx context.Context, reviewerID, resultID uint, req GradeRequest) (*model.Result, error) {
	if req.Notes == "" {
		return nil, util.NewValidationError("grading notes must not be empty")
	}

	result, err := s.Results.FindByID(resultID)
	if err != nil {
		return nil, util.NewTransientIOError("load result", err)
	}
	if result == nil {
		return nil, util.NewNotFoundError("result %d not found", resultID)
	}
	// an auto-graded result can still be overridden by a reviewer, but only
	// with a direct band; the writing/speaking rubric does not apply to it
	if !result.IsManuallyGraded && req.Rubric != nil {
		return nil, util.NewStateError("result %d was auto-graded; override it with a direct band score", resultID)
	}
	if result.BandScore != nil && !req.ConfirmOverwrite {
		return nil, util.NewValidationError("result %d is already graded; re-grading must be confirmed", resultID)
	}

	band, rubricJSON, err := resolveBand(req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result.BandScore = &band
	result.GradingNotes = req.Notes
	result.ReviewedBy = &reviewerID
	result.ReviewedAt = &now
	if rubricJSON != nil {
		switch result.Module {
		case model.ModuleSpeaking:
			result.SpeakingScores = rubricJSON
		default:
			result.WritingScores = rubricJSON
		}
	}

	if err := s.Results.Update(result); err != nil {
		return nil, util.NewTransientIOError("update result", err)
	}

	if err := s.Queue.Remove(ctx, resultID); err != nil {
		// the stored grade wins; a stale queue entry is cleaned up on the next listing
		logger.Log.Warn("failed to dequeue reviewed result",
			zap.Uint("resultId", resultID), zap.Error(err))
	}

	return result, nil
}

// PendingReviews lists queued results, oldest first, skipping ids whose rows
// have meanwhile been graded through another path.
func (s *ReviewService) PendingReviews(ctx context.Context) ([]model.Result, error) {
	ids, err := s.Queue.Pending(ctx)
	if err != nil {
		return nil, util.NewTransientIOError("list pending reviews", err)
	}
	results, err := s.Results.FindByIDs(ids)
	if err != nil {
		return nil, util.NewTransientIOError("load pending results", err)
	}
	pending := make([]model.Result, 0, len(results))
	for _, r := range results {
		if r.BandScore == nil {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func resolveBand(req GradeRequest) (float64, *string, error) {
	if req.Rubric != nil {
		sum := 0.0
		for _, c := range req.Rubric.Criteria() {
			if c < 0 || c > 9 {
				return 0, nil, util.NewValidationError("rubric criterion %.2f is outside the 0-9 band scale", c)
			}
			if !isHalfStep(c) {
				return 0, nil, util.NewValidationError("rubric criterion %.2f is not a 0.5 step", c)
			}
			sum += c
		}
		band := RoundToHalf(sum / 4)
		b, _ := json.Marshal(req.Rubric)
		encoded := string(b)
		return band, &encoded, nil
	}

	if req.BandScore == nil {
		return 0, nil, util.NewValidationError("either a rubric or a direct band score is required")
	}
	band := *req.BandScore
	if band < 0 || band > 9 {
		return 0, nil, util.NewValidationError("band score %.2f is outside the 0-9 scale", band)
	}
	if !isHalfStep(band) {
		return 0, nil, util.NewValidationError("band score %.2f is not a 0.5 step", band)
	}
	return band, nil, nil
}
