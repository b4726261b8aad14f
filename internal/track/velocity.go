// Package track keeps short-lived per-user behavioral state: message and
// link velocity, account age gating and the strike counter. Everything is
// in-memory and bounded; nothing here touches the database.
package track

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// Velocity enforces per-user message and link rate limits over sliding
// windows. The defaults mirror the moderation policy: 5 messages per 10
// seconds and 3 links per 30 seconds.
type Velocity struct {
	msgLimit  int64
	msgWindow time.Duration
	lnkLimit  int64
	lnkWindow time.Duration

	mu    sync.Mutex
	msgs  map[int64]*slidingwindow.Limiter
	links map[int64]*slidingwindow.Limiter
}

// NewVelocity builds a tracker with the given limits. Non-positive values
// fall back to the defaults.
func NewVelocity(msgLimit int, msgWindow time.Duration, linkLimit int, linkWindow time.Duration) *Velocity {
	if msgLimit <= 0 {
		msgLimit = 5
	}
	if msgWindow <= 0 {
		msgWindow = 10 * time.Second
	}
	if linkLimit <= 0 {
		linkLimit = 3
	}
	if linkWindow <= 0 {
		linkWindow = 30 * time.Second
	}
	return &Velocity{
		msgLimit:  int64(msgLimit),
		msgWindow: msgWindow,
		lnkLimit:  int64(linkLimit),
		lnkWindow: linkWindow,
		msgs:      make(map[int64]*slidingwindow.Limiter),
		links:     make(map[int64]*slidingwindow.Limiter),
	}
}

func newLimiter(limit int64, window time.Duration) *slidingwindow.Limiter {
	lim, _ := slidingwindow.NewLimiter(window, limit, func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return slidingwindow.NewLocalWindow()
	})
	return lim
}

// AllowMessage records one message from the user and reports whether it
// stays under the velocity limit.
func (v *Velocity) AllowMessage(userID int64) bool {
	v.mu.Lock()
	lim, ok := v.msgs[userID]
	if !ok {
		lim = newLimiter(v.msgLimit, v.msgWindow)
		v.msgs[userID] = lim
	}
	v.mu.Unlock()
	return lim.Allow()
}

// AllowLink records one link posted by the user and reports whether it
// stays under the velocity limit.
func (v *Velocity) AllowLink(userID int64) bool {
	v.mu.Lock()
	lim, ok := v.links[userID]
	if !ok {
		lim = newLimiter(v.lnkLimit, v.lnkWindow)
		v.links[userID] = lim
	}
	v.mu.Unlock()
	return lim.Allow()
}
