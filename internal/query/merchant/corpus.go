package merchant

import (
	"sort"
	"sync"
)

// Corpus is the set of merchant display names observed in indexed data.
// It is append-only for the lifetime of the process and safe for
// concurrent use; duplicate or stale entries only affect fuzzy-match
// recall, never correctness.
type Corpus struct {
	mu    sync.RWMutex
	names map[string]string // normalized form -> first-seen display name
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{names: make(map[string]string)}
}

// Add records display names. Names already present under the same
// normalized form are ignored.
func (c *Corpus) Add(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		norm := Normalize(name)
		if norm == "" {
			continue
		}
		if _, ok := c.names[norm]; !ok {
			c.names[norm] = name
		}
	}
}

// Names returns the display names in sorted order.
func (c *Corpus) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.names))
	for _, display := range c.names {
		out = append(out, display)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of distinct merchants.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
