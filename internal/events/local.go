package events

import (
	"context"
	"sync"
)

// Local is an in-process broker used when no redis is configured. Each
// subscriber gets its own buffered queue; events are dropped for subscribers
// that fall behind.
type Local struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event
	history map[string][]Event
	retain  int
}

func NewLocal(retain int) *Local {
	return &Local{subs: make(map[string][]chan Event), history: make(map[string][]Event), retain: retain}
}

func (l *Local) Publish(_ context.Context, stream string, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.retain > 0 {
		h := append(l.history[stream], event)
		if len(h) > l.retain {
			h = h[len(h)-l.retain:]
		}
		l.history[stream] = h
	}
	for _, ch := range l.subs[stream] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	ch := make(chan Event, 256)
	l.mu.Lock()
	l.subs[stream] = append(l.subs[stream], ch)
	l.mu.Unlock()

	go func() {
		defer l.unsubscribe(stream, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				handler(ev)
			}
		}
	}()
	return nil
}

func (l *Local) unsubscribe(stream string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := l.subs[stream]
	for i, c := range subs {
		if c == ch {
			l.subs[stream] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (l *Local) Recent(_ context.Context, stream string, n int64) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h := l.history[stream]
	if n > 0 && int64(len(h)) > n {
		h = h[int64(len(h))-n:]
	}
	return append([]Event(nil), h...), nil
}
