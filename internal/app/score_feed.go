package app

import (
	"context"
	"sync"

	"quiz-platform/internal/domain"
)

// AllUsers subscribes to score updates of every user.
const AllUsers = ""

// ScoreFeed is an in-process fan-out of score updates, keyed by user.
// Slow subscribers lose stale updates instead of blocking publishers.
type ScoreFeed struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.ScoreRecord]struct{}
}

func NewScoreFeed() *ScoreFeed {
	return &ScoreFeed{subscribers: make(map[string]map[chan domain.ScoreRecord]struct{})}
}

// Subscribe returns a channel that receives score updates for userID, or for everyone when
// userID is AllUsers. The caller must invoke the returned cancel function to avoid leaks.
func (f *ScoreFeed) Subscribe(userID string) (<-chan domain.ScoreRecord, func()) {
	ch := make(chan domain.ScoreRecord, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.ScoreRecord]struct{})
		f.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[userID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers score to the subscribers of its user and to AllUsers subscribers.
func (f *ScoreFeed) Publish(_ context.Context, score domain.ScoreRecord) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subscribers[score.UserID] {
		deliver(ch, score)
	}
	if score.UserID == AllUsers {
		return
	}
	for ch := range f.subscribers[AllUsers] {
		deliver(ch, score)
	}
}

// Subscribers reports how many channels are currently attached.
func (f *ScoreFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, subs := range f.subscribers {
		n += len(subs)
	}
	return n
}

func deliver(ch chan domain.ScoreRecord, score domain.ScoreRecord) {
	select {
	case ch <- score:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- score:
		default:
		}
	}
}
