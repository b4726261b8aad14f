package track

import (
	"sync"
	"time"
)

// AccountAges records when each user was first seen so that links and
// forwards from brand-new accounts can be gated. First-seen timestamps are
// in-process only; after a restart every account starts its probation over,
// which errs on the strict side.
type AccountAges struct {
	probation time.Duration

	mu        sync.RWMutex
	firstSeen map[int64]time.Time
	now       func() time.Time
}

// NewAccountAges builds a tracker with the given probation period.
func NewAccountAges(probation time.Duration) *AccountAges {
	if probation <= 0 {
		probation = 24 * time.Hour
	}
	return &AccountAges{
		probation: probation,
		firstSeen: make(map[int64]time.Time),
		now:       time.Now,
	}
}

// Observe marks the user as seen, keeping the earliest timestamp.
func (a *AccountAges) Observe(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.firstSeen[userID]; !ok {
		a.firstSeen[userID] = a.now()
	}
}

// IsNew reports whether the user is still inside the probation window.
// Users never observed count as new.
func (a *AccountAges) IsNew(userID int64) bool {
	a.mu.RLock()
	seen, ok := a.firstSeen[userID]
	a.mu.RUnlock()
	if !ok {
		return true
	}
	return a.now().Sub(seen) < a.probation
}
