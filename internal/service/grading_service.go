package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"

	"ielts_backend/internal/config"
	"ielts_backend/internal/model"
	"ielts_backend/internal/util"
	"ielts_backend/pkg/logger"

	"go.uber.org/zap"
)

// BandFunc converts an overall percentage into a band score. The production
// table comes from configuration; tests inject their own.
type BandFunc func(percentage int) float64

// NewBandTable builds a BandFunc from configured breakpoints. Breakpoints are
// matched highest-first; a percentage below every breakpoint maps to the
// lowest configured band.
func NewBandTable(breakpoints []config.BandBreakpoint) BandFunc {
	bps := make([]config.BandBreakpoint, len(breakpoints))
	copy(bps, breakpoints)
	sort.Slice(bps, func(i, j int) bool { return bps[i].MinPercentage > bps[j].MinPercentage })

	return func(percentage int) float64 {
		for _, bp := range bps {
			if percentage >= bp.MinPercentage {
				return bp.Band
			}
		}
		if len(bps) > 0 {
			return bps[len(bps)-1].Band
		}
		return 0
	}
}

var errMalformedAnswerKey = errors.New("malformed answer key")

type resultStore interface {
	Create(result *model.Result) error
	Update(result *model.Result) error
	// FindByID returns (nil, nil) when no row matches.
	FindByID(id uint) (*model.Result, error)
	FindBySessionID(sessionID uint) (*model.Result, error)
	FindByIDs(ids []uint) ([]model.Result, error)
}

type reviewEnqueuer interface {
	Enqueue(ctx context.Context, resultID uint) error
}

// TypeStat is the per-question-type slice of a graded result.
type TypeStat struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// GradingService converts a submitted session plus its question definitions
// into a Result. Listening/reading are graded deterministically; writing and
// speaking produce a shell Result that waits in the review queue.
type GradingService struct {
	Results           resultStore
	Queue             reviewEnqueuer
	BandFor           BandFunc
	WeakAreaThreshold int
}

func NewGradingService(results resultStore, queue reviewEnqueuer, bandFor BandFunc, weakThreshold int) *GradingService {
	if weakThreshold <= 0 {
		weakThreshold = 50
	}
	return &GradingService{
		Results:           results,
		Queue:             queue,
		BandFor:           bandFor,
		WeakAreaThreshold: weakThreshold,
	}
}

// Grade produces and stores the Result for a terminal session. One malformed
// question or answer only costs that item its credit; it never fails the
// whole submission.
func (s *GradingService) Grade(ctx context.Context, session *model.TestSession, questions []model.Question) (*model.Result, error) {
	if session.Module.IsAutoGraded() {
		return s.gradeObjective(session, questions)
	}
	return s.createPendingResult(ctx, session, questions)
}

func (s *GradingService) gradeObjective(session *model.TestSession, questions []model.Question) (*model.Result, error) {
	answers := make(map[uint]string, len(session.Answers))
	for _, a := range session.Answers {
		answers[a.QuestionID] = a.RawValue
	}

	var totalEarned, totalPossible float64
	correctCount := 0
	stats := make(map[model.QuestionType]*TypeStat)
	earnedByType := make(map[model.QuestionType]float64)

	for _, q := range questions {
		maxScore := float64(q.MaxScore)
		if maxScore <= 0 {
			maxScore = 1
		}
		totalPossible += maxScore

		st, ok := stats[q.QuestionType]
		if !ok {
			st = &TypeStat{}
			stats[q.QuestionType] = st
		}
		st.Total++

		fraction, fullyCorrect, err := s.gradeItem(q, answers[q.ID])
		if err != nil {
			// downgraded to incorrect, rest of the submission proceeds
			logger.Log.Warn("grading data error, item counted incorrect",
				zap.Uint("sessionId", session.ID),
				zap.Uint("questionId", q.ID),
				zap.Error(err))
			continue
		}

		totalEarned += fraction * maxScore
		earnedByType[q.QuestionType] += fraction
		if fullyCorrect {
			correctCount++
			st.Correct++
		}
	}

	// Single percentage formula for every auto-graded module: fractional
	// sub-item credit counts toward the percentage, while correctAnswers
	// counts fully-correct items only.
	percentage := 0
	if totalPossible > 0 {
		percentage = int(math.Round(100 * totalEarned / totalPossible))
	}
	for qt, st := range stats {
		if st.Total > 0 {
			st.Percentage = int(math.Round(100 * earnedByType[qt] / float64(st.Total)))
		}
	}

	weakAreas, recommendations := s.weakAreas(stats)
	band := s.BandFor(percentage)

	result := &model.Result{
		SessionID:        session.ID,
		TestID:           session.TestID,
		UserID:           session.UserID,
		Module:           session.Module,
		TotalQuestions:   len(questions),
		CorrectAnswers:   correctCount,
		IncorrectAnswers: len(questions) - correctCount,
		Percentage:       percentage,
		BandScore:        &band,
		IsManuallyGraded: false,
		TypeBreakdown:    encodeJSON(stats),
		WeakAreas:        encodeJSON(weakAreas),
		Recommendations:  encodeJSON(recommendations),
	}
	if err := s.Results.Create(result); err != nil {
		return nil, util.NewTransientIOError("create result", err)
	}
	return result, nil
}

func (s *GradingService) createPendingResult(ctx context.Context, session *model.TestSession, questions []model.Question) (*model.Result, error) {
	result := &model.Result{
		SessionID:        session.ID,
		TestID:           session.TestID,
		UserID:           session.UserID,
		Module:           session.Module,
		TotalQuestions:   len(questions),
		IsManuallyGraded: true,
	}
	if err := s.Results.Create(result); err != nil {
		return nil, util.NewTransientIOError("create result", err)
	}
	if err := s.Queue.Enqueue(ctx, result.ID); err != nil {
		// the result row exists either way; reviewers can still reach it by id
		logger.Log.Warn("failed to enqueue result for review",
			zap.Uint("resultId", result.ID), zap.Error(err))
	}
	return result, nil
}

// gradeItem returns the earned fraction for one question. Unanswered items
// are simply incorrect; malformed data comes back as a GradingDataError.
func (s *GradingService) gradeItem(q model.Question, raw string) (float64, bool, error) {
	value, err := model.DecodeAnswerValue(q.QuestionType, raw)
	if err != nil {
		return 0, false, util.NewGradingDataError(q.ID, err)
	}
	if value.IsEmpty() {
		return 0, false, nil
	}
	if q.QuestionType.IsComposite() {
		return s.gradeComposite(q, value)
	}
	return s.gradeScalar(q, value)
}

func (s *GradingService) gradeScalar(q model.Question, value model.AnswerValue) (float64, bool, error) {
	accepted, err := acceptedAnswers(q)
	if err != nil {
		return 0, false, err
	}
	submitted := normalizeAnswer(value.Text)
	for _, a := range accepted {
		if submitted == normalizeAnswer(a) {
			return 1, true, nil
		}
	}
	return 0, false, nil
}

func (s *GradingService) gradeComposite(q model.Question, value model.AnswerValue) (float64, bool, error) {
	var key map[string]string
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &key); err != nil || len(key) == 0 {
		return 0, false, util.NewGradingDataError(q.ID, errMalformedAnswerKey)
	}
	correct := 0
	for label, want := range key {
		got, ok := value.Parts[label]
		if !ok || got == "" {
			continue
		}
		if normalizeAnswer(got) == normalizeAnswer(want) {
			correct++
		}
	}
	fraction := float64(correct) / float64(len(key))
	return fraction, correct == len(key), nil
}

func (s *GradingService) weakAreas(stats map[model.QuestionType]*TypeStat) ([]string, []string) {
	var weak []string
	for qt, st := range stats {
		if st.Total > 0 && st.Percentage < s.WeakAreaThreshold {
			weak = append(weak, string(qt))
		}
	}
	sort.Strings(weak)

	var recommendations []string
	for _, qt := range weak {
		if text, ok := recommendationTexts[model.QuestionType(qt)]; ok {
			recommendations = append(recommendations, text)
		}
	}
	return weak, recommendations
}

// normalizeAnswer applies the comparator normalization: lowercase, strip
// sentence punctuation, collapse internal whitespace, drop one leading
// article. Both the submission and every accepted answer go through it.
func normalizeAnswer(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ';', '!', '?':
			return -1
		}
		return r
	}, s)
	fields := strings.Fields(s)
	if len(fields) > 1 {
		switch fields[0] {
		case "the", "a", "an":
			fields = fields[1:]
		}
	}
	return strings.Join(fields, " ")
}

// acceptedAnswers collects the canonical answer plus listed alternatives for
// a scalar question.
func acceptedAnswers(q model.Question) ([]string, error) {
	var canonical string
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &canonical); err != nil {
		// older rows store the answer as plain text rather than a JSON string
		canonical = q.CorrectAnswer
	}
	if strings.TrimSpace(canonical) == "" {
		return nil, util.NewGradingDataError(q.ID, errMalformedAnswerKey)
	}
	accepted := []string{canonical}
	if q.AlternativeAnswers != "" {
		var alts []string
		if err := json.Unmarshal([]byte(q.AlternativeAnswers), &alts); err == nil {
			accepted = append(accepted, alts...)
		}
	}
	return accepted, nil
}

func encodeJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

var recommendationTexts = map[model.QuestionType]string{
	model.MultipleChoice:      "Re-read the question stem before the options and eliminate choices that contradict the passage.",
	model.ShortAnswer:         "Check the word limit and copy answers exactly as they appear in the recording or text.",
	model.SentenceCompletion:  "Scan for the sentence's keywords in the passage and mind grammatical fit of the gap.",
	model.SummaryCompletion:   "Practise locating paraphrased sections; summary gaps rarely reuse the passage wording.",
	model.TrueFalseNotGiven:   "Distinguish 'false' (contradicted) from 'not given' (absent); avoid using outside knowledge.",
	model.YesNoNotGiven:       "Focus on the writer's claims only; 'not given' means the view is never stated.",
	model.TableCompletion:     "Use the table headers to predict the kind of word needed before listening or reading.",
	model.MatchingHeadings:    "Read the first and last sentence of each paragraph to capture its main idea before matching.",
	model.MatchingInformation: "Information is usually paraphrased; match meaning, not matching words.",
	model.MatchingFeatures:    "Underline the feature owners in the passage first, then match statements to them.",
	model.MapLabeling:         "Orient yourself with the compass and starting point before the audio begins.",
}
