package track

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tpetrou/go-vouchguard/internal/domain"
)

const maxRecentViolations = 10

type strikeState struct {
	count      int
	lastStrike time.Time
	recent     []domain.Violation
}

// Strikes counts moderation violations per user. State lives in a bounded
// LRU so a long-running process with churny membership cannot grow without
// limit; a user whose entry is evicted simply starts from zero, which is
// acceptable because strikes expire after the reset window anyway.
type Strikes struct {
	max   int
	reset time.Duration

	mu    sync.Mutex
	cache *lru.Cache[int64, *strikeState]
	now   func() time.Time
}

// NewStrikes builds a tracker holding at most capacity users.
func NewStrikes(capacity, maxStrikes int, reset time.Duration) (*Strikes, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	if maxStrikes <= 0 {
		maxStrikes = 3
	}
	if reset <= 0 {
		reset = 24 * time.Hour
	}
	cache, err := lru.New[int64, *strikeState](capacity)
	if err != nil {
		return nil, err
	}
	return &Strikes{max: maxStrikes, reset: reset, cache: cache, now: time.Now}, nil
}

// Record adds a strike for the user and reports the new count plus whether
// the user has reached the escalation threshold. A strike older than the
// reset window clears the count first.
func (s *Strikes) Record(userID int64, v domain.Violation) (count int, escalate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.cache.Get(userID)
	if !ok || s.now().Sub(st.lastStrike) > s.reset {
		st = &strikeState{}
	}
	st.count++
	st.lastStrike = s.now()
	st.recent = append(st.recent, v)
	if len(st.recent) > maxRecentViolations {
		st.recent = st.recent[len(st.recent)-maxRecentViolations:]
	}
	s.cache.Add(userID, st)
	return st.count, st.count >= s.max
}

// Count returns the user's live strike count, applying the reset window.
func (s *Strikes) Count(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cache.Get(userID)
	if !ok || s.now().Sub(st.lastStrike) > s.reset {
		return 0
	}
	return st.count
}

// Recent returns a copy of the user's recent violations, newest last.
func (s *Strikes) Recent(userID int64) []domain.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cache.Get(userID)
	if !ok || s.now().Sub(st.lastStrike) > s.reset {
		return nil
	}
	out := make([]domain.Violation, len(st.recent))
	copy(out, st.recent)
	return out
}

// Clear removes all strike state for the user.
func (s *Strikes) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(userID)
}
