package session

import (
	"context"
	"sync"
)

// Event is an instruction numbered in emission order.
type Event struct {
	Seq         uint64
	Instruction Instruction
}

// Feed keeps the last instructions of a session so a renderer can pick up
// those produced by asynchronous completions.
type Feed struct {
	mu     sync.Mutex
	events []Event
	last   uint64
	limit  int
	wake   chan struct{}
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 512
	}
	return &Feed{limit: limit, wake: make(chan struct{})}
}

func (f *Feed) Append(in ...Instruction) []Event {
	if len(in) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	added := make([]Event, 0, len(in))
	for _, i := range in {
		f.last++
		added = append(added, Event{Seq: f.last, Instruction: i})
	}
	f.events = append(f.events, added...)
	if over := len(f.events) - f.limit; over > 0 {
		f.events = append([]Event(nil), f.events[over:]...)
	}
	close(f.wake)
	f.wake = make(chan struct{})
	return added
}

func (f *Feed) Last() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Feed) Since(after uint64) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since(after)
}

func (f *Feed) since(after uint64) []Event {
	var out []Event
	for _, e := range f.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// Wait blocks until events newer than after exist or ctx is done.
func (f *Feed) Wait(ctx context.Context, after uint64) ([]Event, error) {
	for {
		f.mu.Lock()
		events := f.since(after)
		wake := f.wake
		f.mu.Unlock()

		if len(events) > 0 {
			return events, nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
