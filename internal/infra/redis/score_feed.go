package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

// ScoreFeed relays score updates through a Redis channel so every instance can push them to
// its own websocket subscribers. Local delivery goes through the wrapped app.ScoreFeed.
type ScoreFeed struct {
	client  *redis.Client
	channel string
	local   *app.ScoreFeed
	log     *slog.Logger
	ready   chan struct{}
}

func NewScoreFeed(client *redis.Client, channel string, local *app.ScoreFeed, log *slog.Logger) *ScoreFeed {
	if log == nil {
		log = slog.Default()
	}
	return &ScoreFeed{client: client, channel: channel, local: local, log: log, ready: make(chan struct{})}
}

// Publish sends score to every instance. When Redis is unreachable the update is still
// delivered to this instance's subscribers.
func (f *ScoreFeed) Publish(ctx context.Context, score domain.ScoreRecord) {
	payload, err := json.Marshal(score)
	if err == nil {
		err = f.client.Publish(ctx, f.channel, payload).Err()
	}
	if err != nil {
		f.log.Warn("score relay publish failed", "user_id", score.UserID, "error", err)
		f.local.Publish(ctx, score)
	}
}

func (f *ScoreFeed) Subscribe(userID string) (<-chan domain.ScoreRecord, func()) {
	return f.local.Subscribe(userID)
}

// Ready is closed once Run has subscribed to the channel.
func (f *ScoreFeed) Ready() <-chan struct{} {
	return f.ready
}

// Run forwards relayed updates to local subscribers until ctx is canceled.
func (f *ScoreFeed) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	close(f.ready)
	f.log.Info("score relay subscribed", "channel", f.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var score domain.ScoreRecord
			if err := json.Unmarshal([]byte(msg.Payload), &score); err != nil {
				f.log.Warn("dropping malformed score update", "error", err)
				continue
			}
			f.local.Publish(ctx, score)
		}
	}
}
