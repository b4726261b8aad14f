package lexicon

import (
	"sort"
	"strings"
	"sync"
)

// Overrides is the runtime-mutable keyword set admins manage through the
// administrative surface. It is process-lifetime only: entries are not
// persisted and are lost on restart, which is a documented limitation of
// the dynamic keyword feature rather than a bug.
//
// Safe for concurrent use.
type Overrides struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

// NewOverrides returns an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{words: make(map[string]struct{})}
}

// Add inserts a keyword (lower-cased, trimmed). It reports whether the
// keyword was newly added.
func (o *Overrides) Add(word string) bool {
	w := normalizeWord(word)
	if w == "" {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.words[w]; ok {
		return false
	}
	o.words[w] = struct{}{}
	return true
}

// Remove deletes a keyword and reports whether it was present.
func (o *Overrides) Remove(word string) bool {
	w := normalizeWord(word)
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.words[w]; !ok {
		return false
	}
	delete(o.words, w)
	return true
}

// List returns the current keywords in sorted order.
func (o *Overrides) List() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.words))
	for w := range o.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Match returns the first override keyword contained in the lower-cased
// text, or "" when none applies.
func (o *Overrides) Match(lowered string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for w := range o.words {
		if strings.Contains(lowered, w) {
			return w
		}
	}
	return ""
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
