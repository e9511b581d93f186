package notify

import (
	"context"
	"sync"
)

// DefaultFeedSize is the number of notices kept per owner when no size is given.
const DefaultFeedSize = 50

// Feed keeps the most recent notices per owner in memory so clients can poll them.
type Feed struct {
	mu   sync.Mutex
	size int
	buf  map[string][]Notice
}

// NewFeed returns a Feed keeping at most size notices per owner.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size, buf: make(map[string][]Notice)}
}

func (f *Feed) Notify(_ context.Context, n Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append(f.buf[n.Owner], n)
	if over := len(list) - f.size; over > 0 {
		list = append([]Notice(nil), list[over:]...)
	}
	f.buf[n.Owner] = list
	return nil
}

// Recent returns up to limit notices for owner, newest first. limit <= 0 means all.
func (f *Feed) Recent(owner string, limit int) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.buf[owner]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]Notice, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out
}

// Recorder collects every notice. Handy in tests.
type Recorder struct {
	mu      sync.Mutex
	Notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	r.Notices = append(r.Notices, n)
	r.mu.Unlock()
	return nil
}

// All returns a copy of the recorded notices.
func (r *Recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.Notices...)
}
