package checkout

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// IDGenerator mints order ids of the form ORD-<base36 millis>. Ids are
// strictly increasing within a process even when the clock stalls or steps
// back.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDGenerator creates a generator reading time from now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh order id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return "ORD-" + strings.ToUpper(strconv.FormatInt(ms, 36))
}
