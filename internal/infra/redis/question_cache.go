package redis

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

var errStaleFill = errors.New("question invalidated during load")

// QuestionCache caches questions in Redis (hash per question) and falls back to a loader on miss.
// Questions are stored as: HSET question:{id} text .. option_a .. correct_label .. category_id ..
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionStore
	ttl    time.Duration
	sf     singleflight.Group
	log    *slog.Logger
}

func NewQuestionCache(client *redis.Client, loader app.QuestionStore, ttl time.Duration, log *slog.Logger) *QuestionCache {
	if log == nil {
		log = slog.Default()
	}
	return &QuestionCache{client: client, loader: loader, ttl: ttl, log: log}
}

func (c *QuestionCache) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := c.lookup(ctx, questionID); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.lookup(ctx, questionID); ok {
			return q, nil
		}

		// A failed read means Redis is unreachable; the fill is skipped as well.
		gen, genErr := c.client.Get(ctx, questionGenKey(questionID)).Int64()
		fill := genErr == nil || errors.Is(genErr, redis.Nil)

		q, err := c.loader.FindQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		if fill {
			c.store(ctx, questionID, q, gen)
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// store writes q unless the question was invalidated after gen was read.
func (c *QuestionCache) store(ctx context.Context, questionID string, q domain.Question, gen int64) {
	genKey := questionGenKey(questionID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		key := questionKey(questionID)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				"text":          q.Text,
				"option_a":      q.OptionA,
				"option_b":      q.OptionB,
				"option_c":      q.OptionC,
				"correct_label": string(q.CorrectLabel),
				"image_url":     q.ImageURL,
				"category_id":   q.CategoryID,
				"status":        string(q.Status),
				"created_by":    q.CreatedBy,
				"created_at":    q.CreatedAt.UTC().Format(time.RFC3339Nano),
			})
			if ttl := ttlWithJitter(c.ttl); ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("question cache fill skipped after invalidate", "question_id", questionID)
	default:
		c.log.Warn("question cache fill failed", "question_id", questionID, "error", err)
	}
}

// Invalidate bumps the question's generation and deletes the cached hash; failures only delay
// the refresh until the TTL expires.
func (c *QuestionCache) Invalidate(ctx context.Context, questionID string) {
	c.sf.Forget(questionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, questionGenKey(questionID))
		pipe.Del(ctx, questionKey(questionID))
		return nil
	})
	if err != nil {
		c.log.Warn("question cache invalidate failed", "question_id", questionID, "error", err)
	}
}

// lookup treats any Redis error as a miss so the store stays authoritative.
func (c *QuestionCache) lookup(ctx context.Context, questionID string) (domain.Question, bool) {
	fields, err := c.client.HGetAll(ctx, questionKey(questionID)).Result()
	if err != nil || len(fields) == 0 {
		return domain.Question{}, false
	}
	q := domain.Question{
		ID:           questionID,
		Text:         fields["text"],
		OptionA:      fields["option_a"],
		OptionB:      fields["option_b"],
		OptionC:      fields["option_c"],
		CorrectLabel: domain.Label(fields["correct_label"]),
		ImageURL:     fields["image_url"],
		CategoryID:   fields["category_id"],
		Status:       domain.QuestionStatus(fields["status"]),
		CreatedBy:    fields["created_by"],
	}
	if !q.CorrectLabel.Valid() || q.CategoryID == "" {
		return domain.Question{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		q.CreatedAt = ts
	}
	return q, true
}

func questionKey(questionID string) string {
	return "question:" + questionID
}

func questionGenKey(questionID string) string {
	return "question:" + questionID + ":gen"
}

func ttlWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(rand.Int63n(jitterMax+1))
}
