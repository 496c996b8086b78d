package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"ielts_backend/internal/model"
	"ielts_backend/pkg/logger"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// fakeClock drives the session state machine deterministically. Timers fire
// when Advance moves the clock past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	fireAt  time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fireAt: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// Advance moves the clock forward and fires due timers synchronously.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.fireAt.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// fakeSessionStore keeps sessions and answers in maps, with switchable
// failure injection for the flush paths.
type fakeSessionStore struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*model.TestSession
	answers  map[uint]map[uint]model.SessionAnswer
	failSave bool
	saves    int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		nextID:   1,
		sessions: make(map[uint]*model.TestSession),
		answers:  make(map[uint]map[uint]model.SessionAnswer),
	}
}

func (f *fakeSessionStore) Create(session *model.TestSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = f.nextID
	f.nextID++
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionStore) Update(session *model.TestSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionStore) FindByID(id uint) (*model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	copied.Answers = nil
	for _, a := range f.answers[id] {
		copied.Answers = append(copied.Answers, a)
	}
	return &copied, nil
}

func (f *fakeSessionStore) FindActiveByUserAndTest(userID, testID uint) (*model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.TestID == testID && s.Status.IsActive() {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) activeCount(userID, testID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.TestID == testID && s.Status.IsActive() {
			n++
		}
	}
	return n
}

func (f *fakeSessionStore) FindOverdue(now time.Time) ([]model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestSession
	for _, s := range f.sessions {
		if s.Status.IsActive() && s.DeadlineAt.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) SaveAnswers(sessionID uint, answers []model.SessionAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failSave {
		return errors.New("storage unavailable")
	}
	byQuestion, ok := f.answers[sessionID]
	if !ok {
		byQuestion = make(map[uint]model.SessionAnswer)
		f.answers[sessionID] = byQuestion
	}
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	return nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	nextID  uint
	results map[uint]*model.Result
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{nextID: 1, results: make(map[uint]*model.Result)}
}

func (f *fakeResultStore) Create(result *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	result.ID = f.nextID
	f.nextID++
	copied := *result
	f.results[result.ID] = &copied
	return nil
}

func (f *fakeResultStore) Update(result *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *result
	f.results[result.ID] = &copied
	return nil
}

func (f *fakeResultStore) FindByID(id uint) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *fakeResultStore) FindBySessionID(sessionID uint) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.results {
		if r.SessionID == sessionID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeResultStore) FindByIDs(ids []uint) ([]model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Result
	for _, id := range ids {
		if r, ok := f.results[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeContent struct {
	tests     map[uint]*model.Test
	questions map[uint][]model.Question
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		tests:     make(map[uint]*model.Test),
		questions: make(map[uint][]model.Question),
	}
}

func (f *fakeContent) GetTest(testID uint) (*model.Test, error) {
	t, ok := f.tests[testID]
	if !ok {
		return nil, errors.New("test not found")
	}
	return t, nil
}

func (f *fakeContent) QuestionsForTest(testID uint) ([]model.Question, error) {
	return f.questions[testID], nil
}

// fakeReviewQueue records enqueue/remove calls in order.
type fakeReviewQueue struct {
	mu      sync.Mutex
	pending []uint
}

func (f *fakeReviewQueue) Enqueue(ctx context.Context, resultID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, resultID)
	return nil
}

func (f *fakeReviewQueue) Remove(ctx context.Context, resultID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.pending {
		if id == resultID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeReviewQueue) Pending(ctx context.Context) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

func scalarQuestion(id uint, qType model.QuestionType, answer string, alternatives string) model.Question {
	return model.Question{
		BaseModel:          model.BaseModel{ID: id},
		QuestionType:       qType,
		CorrectAnswer:      answer,
		AlternativeAnswers: alternatives,
		MaxScore:           1,
	}
}

func fixedBand(band float64) BandFunc {
	return func(percentage int) float64 { return band }
}
