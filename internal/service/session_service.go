package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ielts_backend/internal/config"
	"ielts_backend/internal/model"
	"ielts_backend/internal/util"
	"ielts_backend/pkg/logger"
	"ielts_backend/pkg/monitoring"

	"go.uber.org/zap"
)

type SubmitCause string

const (
	SubmitManual  SubmitCause = "manual"
	SubmitTimeout SubmitCause = "timeout"
)

const persistRetryBackoff = 200 * time.Millisecond

type sessionStore interface {
	Create(session *model.TestSession) error
	Update(session *model.TestSession) error
	// FindByID and FindActiveByUserAndTest return (nil, nil) when no row matches.
	FindByID(id uint) (*model.TestSession, error)
	FindActiveByUserAndTest(userID, testID uint) (*model.TestSession, error)
	FindOverdue(now time.Time) ([]model.TestSession, error)
	SaveAnswers(sessionID uint, answers []model.SessionAnswer) error
}

type contentProvider interface {
	GetTest(testID uint) (*model.Test, error)
	QuestionsForTest(testID uint) ([]model.Question, error)
}

// liveSession is the in-memory working set of one active session: its answers
// keyed by question, the deadline timer and the autosave loop handle. All
// field access goes through mu.
type liveSession struct {
	mu      sync.Mutex
	sess    *model.TestSession
	answers map[uint]model.SessionAnswer
	total   int

	// gen counts answer writes; savedGen is the generation captured by the
	// last confirmed flush, so a clean session skips the remote write.
	gen      uint64
	savedGen uint64

	submitting bool
	submitDone chan struct{}
	result     *model.Result
	submitErr  error

	// detached handles wrap terminal sessions loaded for idempotent re-submit
	// and status reads; they carry no timers and are never registered.
	detached bool

	timer        Timer
	stopAutosave chan struct{}
	stopOnce     sync.Once
}

func (ls *liveSession) stop() {
	ls.stopOnce.Do(func() {
		if ls.timer != nil {
			ls.timer.Stop()
		}
		if ls.stopAutosave != nil {
			close(ls.stopAutosave)
		}
	})
}

// StartResult tells the caller whether an existing attempt was resumed; the
// distinction is UX only, scoring is identical either way.
type StartResult struct {
	Session *model.TestSession `json:"session"`
	Resumed bool               `json:"resumed"`
}

// SessionStatus is the UI-facing view of a session.
type SessionStatus struct {
	SessionID        uint                `json:"sessionId"`
	Status           model.SessionStatus `json:"status"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	AnsweredCount    int                 `json:"answeredCount"`
	TotalQuestions   int                 `json:"totalQuestions"`
	ProgressPercent  int                 `json:"progressPercent"`
	ResultID         *uint               `json:"resultId,omitempty"`
}

// SessionService owns the session state machine: start/resume, answer
// recording, periodic persistence, and exactly-once submission whether the
// trigger is the user or the deadline timer.
type SessionService struct {
	Sessions sessionStore
	Results  resultStore
	Content  contentProvider
	Grading  *GradingService
	Clock    Clock
	Policy   config.SessionConfig

	mu   sync.RWMutex
	live map[uint]*liveSession

	// startMu serializes Start per (user, test): without it two concurrent
	// starts can both pass the active-session lookup and create two attempts
	startMu    sync.Mutex
	startLocks map[uint64]*sync.Mutex
}

func NewSessionService(sessions sessionStore, results resultStore, content contentProvider, grading *GradingService, clock Clock, policy config.SessionConfig) *SessionService {
	if policy.AutosaveIntervalSeconds <= 0 {
		policy.AutosaveIntervalSeconds = 30
	}
	if policy.PersistRetries <= 0 {
		policy.PersistRetries = 3
	}
	return &SessionService{
		Sessions:   sessions,
		Results:    results,
		Content:    content,
		Grading:    grading,
		Clock:      clock,
		Policy:     policy,
		live:       make(map[uint]*liveSession),
		startLocks: make(map[uint64]*sync.Mutex),
	}
}

// Start opens a timed attempt, or resumes the one active session the user
// already has for this test. The deadline is absolute: resuming never resets
// it, and resuming past it closes the old attempt out as expired before a
// fresh one is created.
func (s *SessionService) Start(ctx context.Context, userID, testID uint) (*StartResult, error) {
	lock := s.startLock(userID, testID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Sessions.FindActiveByUserAndTest(userID, testID)
	if err != nil {
		return nil, util.NewTransientIOError("load active session", err)
	}
	if existing != nil {
		if s.Clock.Now().Before(existing.DeadlineAt) {
			ls := s.adopt(existing)
			ls.mu.Lock()
			sess := ls.sess
			ls.mu.Unlock()
			return &StartResult{Session: sess, Resumed: true}, nil
		}
		// resumed after the deadline: the timer never got to fire, so close
		// the attempt out now before opening a new one
		ls := s.adopt(existing)
		if _, err := s.Submit(ctx, 0, existing.ID, SubmitTimeout); err != nil {
			logger.Log.Warn("failed to expire overdue session on resume",
				zap.Uint("sessionId", existing.ID), zap.Error(err))
			ls.stop()
		}
	}

	test, err := s.Content.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if !test.IsPublished {
		return nil, util.NewValidationError("test %d is not published", testID)
	}

	now := s.Clock.Now()
	sess := &model.TestSession{
		TestID:     testID,
		UserID:     userID,
		Module:     test.Module,
		Status:     model.SessionInProgress,
		StartedAt:  now,
		DeadlineAt: now.Add(time.Duration(test.DurationMinutes) * time.Minute),
	}
	if err := s.Sessions.Create(sess); err != nil {
		return nil, util.NewTransientIOError("create session", err)
	}

	s.adopt(sess)
	return &StartResult{Session: sess, Resumed: false}, nil
}

// RecordAnswer upserts one answer into the in-memory working set, last write
// wins. Persistence is batched; this never touches the remote store.
func (s *SessionService) RecordAnswer(userID, sessionID, questionID uint, value model.AnswerValue, timeSpentSeconds int) error {
	ls, err := s.handle(sessionID)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.sess.UserID != userID {
		return util.NewNotFoundError("session %d not found", sessionID)
	}
	if ls.sess.Status != model.SessionInProgress {
		return util.NewStateError("cannot record an answer on a %s session", ls.sess.Status)
	}
	if ls.submitting {
		return util.NewStateError("cannot record an answer while the session is being submitted")
	}

	a := ls.answers[questionID]
	a.SessionID = sessionID
	a.QuestionID = questionID
	a.RawValue = value.Encode()
	if timeSpentSeconds > 0 {
		a.TimeSpentSeconds = timeSpentSeconds
	}
	ls.answers[questionID] = a
	ls.gen++
	return nil
}

// Persist flushes the full current answer set to the store. Idempotent:
// replaying a batch produces the same rows, and a clean session is a no-op.
func (s *SessionService) Persist(sessionID uint) error {
	ls, err := s.handle(sessionID)
	if err != nil {
		return err
	}
	return s.flush(ls)
}

// Submit drives the session to a terminal state and grades it, exactly once.
// A manual submit and the deadline timer may race; whichever arrives second
// waits for the first and shares its Result. Submitting an already-terminal
// session returns the existing Result.
func (s *SessionService) Submit(ctx context.Context, userID, sessionID uint, cause SubmitCause) (*model.Result, error) {
	ls, err := s.handle(sessionID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	if cause == SubmitManual && userID != 0 && ls.sess.UserID != userID {
		ls.mu.Unlock()
		return nil, util.NewNotFoundError("session %d not found", sessionID)
	}
	// submitting is checked before the terminal status: finalize marks the
	// session terminal before its Result exists, and a second submitter must
	// wait for that Result rather than start grading on its own
	if ls.submitting {
		done := ls.submitDone
		ls.mu.Unlock()
		<-done
		ls.mu.Lock()
		result, submitErr := ls.result, ls.submitErr
		ls.mu.Unlock()
		if result != nil {
			return result, nil
		}
		return nil, submitErr
	}
	if ls.sess.Status.IsTerminal() {
		ls.mu.Unlock()
		return s.existingResult(ctx, ls)
	}
	ls.submitting = true
	ls.submitDone = make(chan struct{})
	done := ls.submitDone
	ls.mu.Unlock()

	result, err := s.finalize(ctx, ls, cause)

	ls.mu.Lock()
	ls.result, ls.submitErr = result, err
	if err != nil {
		// leave the door open for a retry: an open session re-runs finalize,
		// a terminal one recovers through existingResult
		ls.submitting = false
		ls.submitDone = nil
	}
	ls.mu.Unlock()
	close(done)

	return result, err
}

// Status reports the countdown and progress for display.
func (s *SessionService) Status(userID, sessionID uint) (*SessionStatus, error) {
	ls, err := s.handle(sessionID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.sess.UserID != userID {
		return nil, util.NewNotFoundError("session %d not found", sessionID)
	}

	remaining := 0
	if ls.sess.Status == model.SessionInProgress {
		if d := ls.sess.DeadlineAt.Sub(s.Clock.Now()); d > 0 {
			remaining = int(d.Seconds())
		}
	}

	answered := 0
	for _, a := range ls.answers {
		var v model.AnswerValue
		if json.Unmarshal([]byte(a.RawValue), &v) == nil && !v.IsEmpty() {
			answered++
		}
	}

	progress := 0
	if ls.total > 0 {
		total := ls.total
		if answered > total {
			answered = total
		}
		progress = 100 * answered / total
	}

	return &SessionStatus{
		SessionID:        sessionID,
		Status:           ls.sess.Status,
		RemainingSeconds: remaining,
		AnsweredCount:    answered,
		TotalQuestions:   ls.total,
		ProgressPercent:  progress,
		ResultID:         ls.sess.ResultID,
	}, nil
}

func (s *SessionService) startLock(userID, testID uint) *sync.Mutex {
	key := uint64(userID)<<32 | uint64(testID)
	s.startMu.Lock()
	defer s.startMu.Unlock()
	lock, ok := s.startLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.startLocks[key] = lock
	}
	return lock
}

// adopt registers a session in the live set, loading its persisted answers
// and arming the deadline timer and autosave loop. Adopting an already-live
// session returns the existing handle.
func (s *SessionService) adopt(sess *model.TestSession) *liveSession {
	s.mu.Lock()
	if ls, ok := s.live[sess.ID]; ok {
		s.mu.Unlock()
		return ls
	}
	ls := &liveSession{
		sess:         sess,
		answers:      make(map[uint]model.SessionAnswer, len(sess.Answers)),
		stopAutosave: make(chan struct{}),
	}
	for _, a := range sess.Answers {
		ls.answers[a.QuestionID] = a
	}
	s.live[sess.ID] = ls
	s.mu.Unlock()
	monitoring.ActiveSessions.Inc()

	if questions, err := s.Content.QuestionsForTest(sess.TestID); err == nil {
		ls.mu.Lock()
		ls.total = len(questions)
		ls.mu.Unlock()
	} else {
		logger.Log.Warn("could not count questions for session progress",
			zap.Uint("sessionId", sess.ID), zap.Error(err))
	}

	remaining := sess.DeadlineAt.Sub(s.Clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	sessionID := sess.ID
	ls.timer = s.Clock.AfterFunc(remaining, func() {
		if _, err := s.Submit(context.Background(), 0, sessionID, SubmitTimeout); err != nil {
			logger.Log.Error("deadline auto-submit failed",
				zap.Uint("sessionId", sessionID), zap.Error(err))
		}
	})
	go s.autosaveLoop(ls)
	return ls
}

// handle returns the live handle for a session, re-adopting active sessions
// that fell out of memory (e.g. after a restart). Terminal sessions come back
// as detached read-only handles.
func (s *SessionService) handle(sessionID uint) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.live[sessionID]
	s.mu.RUnlock()
	if ok {
		return ls, nil
	}

	sess, err := s.Sessions.FindByID(sessionID)
	if err != nil {
		return nil, util.NewTransientIOError("load session", err)
	}
	if sess == nil {
		return nil, util.NewNotFoundError("session %d not found", sessionID)
	}
	if sess.Status.IsTerminal() {
		detached := &liveSession{sess: sess, answers: make(map[uint]model.SessionAnswer), detached: true}
		for _, a := range sess.Answers {
			detached.answers[a.QuestionID] = a
		}
		// terminal sessions still report progress totals in Status
		if questions, err := s.Content.QuestionsForTest(sess.TestID); err == nil {
			detached.total = len(questions)
		}
		return detached, nil
	}
	return s.adopt(sess), nil
}

// flush writes a snapshot of the answer set without holding the lock across
// the remote call, so recording stays responsive during a slow save.
func (s *SessionService) flush(ls *liveSession) error {
	ls.mu.Lock()
	gen := ls.gen
	if gen == ls.savedGen {
		ls.mu.Unlock()
		return nil
	}
	sessionID := ls.sess.ID
	batch := make([]model.SessionAnswer, 0, len(ls.answers))
	for _, a := range ls.answers {
		batch = append(batch, a)
	}
	ls.mu.Unlock()

	if err := s.Sessions.SaveAnswers(sessionID, batch); err != nil {
		return util.NewTransientIOError("save answers", err)
	}

	ls.mu.Lock()
	if ls.savedGen < gen {
		ls.savedGen = gen
	}
	ls.mu.Unlock()
	return nil
}

func (s *SessionService) autosaveLoop(ls *liveSession) {
	ticker := time.NewTicker(time.Duration(s.Policy.AutosaveIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ls.stopAutosave:
			return
		case <-ticker.C:
			if err := s.flush(ls); err != nil {
				// best effort: the next cycle retries with the latest state
				monitoring.AutosaveFailures.Inc()
				ls.mu.Lock()
				sessionID := ls.sess.ID
				ls.mu.Unlock()
				logger.Log.Warn("autosave failed, will retry next cycle",
					zap.Uint("sessionId", sessionID), zap.Error(err))
			}
		}
	}
}

// finalize performs the terminal transition: confirmed final flush, status
// change, grading. Grading never runs on an unconfirmed flush; a timed-out
// session that cannot reach the store is still expired locally so it cannot
// hang open.
func (s *SessionService) finalize(ctx context.Context, ls *liveSession, cause SubmitCause) (*model.Result, error) {
	questions, qerr := s.Content.QuestionsForTest(ls.sess.TestID)

	var flushErr error
	for attempt := 0; attempt < s.Policy.PersistRetries; attempt++ {
		if flushErr = s.flush(ls); flushErr == nil {
			break
		}
		time.Sleep(persistRetryBackoff)
	}

	if flushErr != nil || qerr != nil {
		err := flushErr
		if err == nil {
			err = qerr
		}
		if cause == SubmitTimeout {
			s.expireLocally(ls, err)
		}
		return nil, err
	}

	now := s.Clock.Now()
	ls.mu.Lock()
	prevStatus := ls.sess.Status
	if cause == SubmitTimeout {
		ls.sess.Status = model.SessionExpired
	} else {
		ls.sess.Status = model.SessionCompleted
	}
	ls.sess.SubmittedAt = &now
	ls.sess.Answers = make([]model.SessionAnswer, 0, len(ls.answers))
	for _, a := range ls.answers {
		ls.sess.Answers = append(ls.sess.Answers, a)
	}
	sess := ls.sess
	ls.mu.Unlock()

	if err := s.Sessions.Update(sess); err != nil {
		if cause == SubmitTimeout {
			s.expireLocally(ls, err)
			return nil, util.NewTransientIOError("mark session terminal", err)
		}
		ls.mu.Lock()
		ls.sess.Status = prevStatus
		ls.sess.SubmittedAt = nil
		ls.mu.Unlock()
		return nil, util.NewTransientIOError("mark session terminal", err)
	}

	result, err := s.Grading.Grade(ctx, sess, questions)
	if err != nil {
		// session is terminal; a re-submit lands in existingResult and
		// re-runs grading from the persisted snapshot
		return nil, err
	}

	ls.mu.Lock()
	ls.sess.ResultID = &result.ID
	ls.mu.Unlock()
	if err := s.Sessions.Update(sess); err != nil {
		logger.Log.Warn("failed to link result to session",
			zap.Uint("sessionId", sess.ID), zap.Uint("resultId", result.ID), zap.Error(err))
	}

	monitoring.SubmissionCounter.WithLabelValues(string(cause)).Inc()
	s.drop(ls)
	return result, nil
}

// existingResult serves idempotent re-submits of a terminal session. If the
// session ended without a Result (persist or grading failed after the terminal
// transition), the flush is retried and grading re-run.
func (s *SessionService) existingResult(ctx context.Context, ls *liveSession) (*model.Result, error) {
	ls.mu.Lock()
	sess := ls.sess
	detached := ls.detached
	ls.mu.Unlock()

	result, err := s.Results.FindBySessionID(sess.ID)
	if err != nil {
		return nil, util.NewTransientIOError("load result", err)
	}
	if result != nil {
		if !detached {
			s.drop(ls)
		}
		return result, nil
	}

	// a live entry here means the terminal transition never got confirmed;
	// reconcile the store with what we still hold before grading
	if !detached {
		if err := s.flush(ls); err != nil {
			return nil, err
		}
		ls.mu.Lock()
		sess.Answers = sess.Answers[:0]
		for _, a := range ls.answers {
			sess.Answers = append(sess.Answers, a)
		}
		ls.mu.Unlock()
		if err := s.Sessions.Update(sess); err != nil {
			return nil, util.NewTransientIOError("mark session terminal", err)
		}
	}

	questions, err := s.Content.QuestionsForTest(sess.TestID)
	if err != nil {
		return nil, err
	}
	result, err = s.Grading.Grade(ctx, sess, questions)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	ls.sess.ResultID = &result.ID
	ls.mu.Unlock()
	if err := s.Sessions.Update(sess); err != nil {
		logger.Log.Warn("failed to link result to session",
			zap.Uint("sessionId", sess.ID), zap.Uint("resultId", result.ID), zap.Error(err))
	}
	if !detached {
		s.drop(ls)
	}
	return result, nil
}

// expireLocally moves a timed-out session out of in_progress even though the
// store could not confirm it, keeping the in-memory answers so a later retry
// can reconcile and grade.
func (s *SessionService) expireLocally(ls *liveSession, cause error) {
	now := s.Clock.Now()
	ls.mu.Lock()
	ls.sess.Status = model.SessionExpired
	ls.sess.SubmittedAt = &now
	sessionID := ls.sess.ID
	ls.mu.Unlock()

	if ls.timer != nil {
		ls.timer.Stop()
	}
	logger.Log.Error("session expired locally without remote confirmation",
		zap.Uint("sessionId", sessionID), zap.Error(cause))
	if err := s.Sessions.Update(ls.sess); err != nil {
		logger.Log.Warn("deferred expiry reconciliation pending",
			zap.Uint("sessionId", sessionID), zap.Error(err))
	}
}

// ReconcileOverdue closes out active sessions whose deadline passed while no
// timer was armed for them, typically after a restart. Sessions already in the
// live set are left to their own timer.
func (s *SessionService) ReconcileOverdue(ctx context.Context) error {
	overdue, err := s.Sessions.FindOverdue(s.Clock.Now())
	if err != nil {
		return util.NewTransientIOError("list overdue sessions", err)
	}
	for _, sess := range overdue {
		s.mu.RLock()
		_, isLive := s.live[sess.ID]
		s.mu.RUnlock()
		if isLive {
			continue
		}
		if _, err := s.Submit(ctx, 0, sess.ID, SubmitTimeout); err != nil {
			logger.Log.Warn("overdue session reconciliation failed",
				zap.Uint("sessionId", sess.ID), zap.Error(err))
		}
	}
	return nil
}

// drop removes a finished session from the live set and stops its timers.
func (s *SessionService) drop(ls *liveSession) {
	ls.mu.Lock()
	sessionID := ls.sess.ID
	detached := ls.detached
	ls.mu.Unlock()
	if detached {
		return
	}

	ls.stop()
	s.mu.Lock()
	if _, ok := s.live[sessionID]; ok {
		delete(s.live, sessionID)
		s.mu.Unlock()
		monitoring.ActiveSessions.Dec()
		return
	}
	s.mu.Unlock()
}
