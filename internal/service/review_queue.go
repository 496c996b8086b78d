package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const pendingReviewKey = "review:pending"

// ReviewQueue holds result ids awaiting manual grading, ordered by submission
// time, in a redis sorted set shared with whatever surfaces the queue to
// reviewers.
type ReviewQueue struct {
	Redis *redis.Client
}

func NewReviewQueue(rdb *redis.Client) *ReviewQueue {
	return &ReviewQueue{Redis: rdb}
}

func (q *ReviewQueue) Enqueue(ctx context.Context, resultID uint) error {
	return q.Redis.ZAdd(ctx, pendingReviewKey, &redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: strconv.FormatUint(uint64(resultID), 10),
	}).Err()
}

func (q *ReviewQueue) Remove(ctx context.Context, resultID uint) error {
	return q.Redis.ZRem(ctx, pendingReviewKey, strconv.FormatUint(uint64(resultID), 10)).Err()
}

// Pending returns queued result ids, oldest submission first.
func (q *ReviewQueue) Pending(ctx context.Context) ([]uint, error) {
	members, err := q.Redis.ZRange(ctx, pendingReviewKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
