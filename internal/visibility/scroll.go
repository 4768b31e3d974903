package visibility

import "sync"

// Document is the page-level scroll owner.
type Document interface {
	SuspendScroll()
	RestoreScroll()
}

// ScrollGuard reference-counts scroll suspension so several overlays can hold
// it at once. The document is suspended by the first holder and restored by
// the last.
type ScrollGuard struct {
	doc Document

	mu      sync.Mutex
	holders int
}

func NewScrollGuard(doc Document) *ScrollGuard {
	return &ScrollGuard{doc: doc}
}

// Acquire takes a hold. The returned release may be called any number of
// times; only the first call counts.
func (g *ScrollGuard) Acquire() (release func()) {
	if g == nil {
		return func() {}
	}
	g.mu.Lock()
	g.holders++
	if g.holders == 1 && g.doc != nil {
		g.doc.SuspendScroll()
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(g.release)
	}
}

func (g *ScrollGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holders == 0 {
		return
	}
	g.holders--
	if g.holders == 0 && g.doc != nil {
		g.doc.RestoreScroll()
	}
}

// Held reports the number of outstanding holds.
func (g *ScrollGuard) Held() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holders
}
