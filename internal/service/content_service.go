package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ielts_backend/internal/model"
	"ielts_backend/internal/repository"
	"ielts_backend/internal/util"
	"ielts_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const contentCacheTTL = 10 * time.Minute

// ContentService serves test definitions to candidates and to the grading
// pipeline. Reads are cached in redis; test content changes rarely compared to
// how often sessions fetch it.
type ContentService struct {
	TestRepo     *repository.TestRepository
	QuestionRepo *repository.QuestionRepository
	Redis        *redis.Client
}

func NewContentService(testRepo *repository.TestRepository, questionRepo *repository.QuestionRepository, rdb *redis.Client) *ContentService {
	return &ContentService{
		TestRepo:     testRepo,
		QuestionRepo: questionRepo,
		Redis:        rdb,
	}
}

// GetTest returns a test with its sections but without questions.
func (s *ContentService) GetTest(testID uint) (*model.Test, error) {
	key := fmt.Sprintf("content:test:%d", testID)
	var cached model.Test
	if s.cacheGet(key, &cached) {
		return &cached, nil
	}

	test, err := s.TestRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.NewNotFoundError("test %d not found", testID)
		}
		return nil, util.NewTransientIOError("load test", err)
	}

	s.cacheSet(key, test)
	return test, nil
}

// GetTestWithQuestions returns the full candidate-facing test. Correct answers
// never serialize (the model hides them from JSON), so the cached copy is safe
// to hand to clients.
func (s *ContentService) GetTestWithQuestions(testID uint) (*model.Test, error) {
	key := fmt.Sprintf("content:test:%d:full", testID)
	var cached model.Test
	if s.cacheGet(key, &cached) {
		return &cached, nil
	}

	test, err := s.TestRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.NewNotFoundError("test %d not found", testID)
		}
		return nil, util.NewTransientIOError("load test", err)
	}

	s.cacheSet(key, test)
	return test, nil
}

// QuestionsForTest returns the grading view of a test's questions, answer keys
// included. This path is internal only and is never cached, so a key fix takes
// effect on the next submission.
func (s *ContentService) QuestionsForTest(testID uint) ([]model.Question, error) {
	questions, err := s.QuestionRepo.FindByTestID(testID)
	if err != nil {
		return nil, util.NewTransientIOError("load questions", err)
	}
	return questions, nil
}

func (s *ContentService) ListTests(module string, page, limit int) ([]model.Test, int64, error) {
	tests, total, err := s.TestRepo.ListPublished(module, page, limit)
	if err != nil {
		return nil, 0, util.NewTransientIOError("list tests", err)
	}
	return tests, total, nil
}

func (s *ContentService) cacheGet(key string, out interface{}) bool {
	if s.Redis == nil {
		return false
	}
	data, err := s.Redis.Get(context.Background(), key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (s *ContentService) cacheSet(key string, v interface{}) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(context.Background(), key, data, contentCacheTTL).Err(); err != nil {
		logger.Log.Debug("content cache write failed", zap.String("key", key), zap.Error(err))
	}
}
