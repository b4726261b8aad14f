package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimerQueue schedules delayed message deletions (acknowledgement and
// rejection notices auto-expire). Every scheduled task is tracked so the
// queue can be drained on shutdown; deletion failures are logged and
// swallowed because an expired notice is cosmetic.
type TimerQueue struct {
	chat Chat
	log  zerolog.Logger

	mu     sync.Mutex
	timers map[int64]*time.Timer
	nextID int64
	closed bool
}

// NewTimerQueue returns a queue that deletes through chat.
func NewTimerQueue(chat Chat, log zerolog.Logger) *TimerQueue {
	return &TimerQueue{
		chat:   chat,
		log:    log,
		timers: make(map[int64]*time.Timer),
	}
}

// DeleteAfter schedules the message for deletion once d elapses. The
// returned cancel func is a no-op after the deletion fired.
func (q *TimerQueue) DeleteAfter(chatID, messageID int64, d time.Duration) (cancel func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return func() {}
	}
	q.nextID++
	id := q.nextID

	t := time.AfterFunc(d, func() {
		q.mu.Lock()
		delete(q.timers, id)
		q.mu.Unlock()

		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := q.chat.Delete(ctx, chatID, messageID); err != nil {
			q.log.Debug().Err(err).
				Int64("chat_id", chatID).
				Int64("message_id", messageID).
				Msg("expired notice already gone")
		}
	})
	q.timers[id] = t

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if t, ok := q.timers[id]; ok {
			t.Stop()
			delete(q.timers, id)
		}
	}
}

// Close stops all pending timers without firing them.
func (q *TimerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
