package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// VisitCounter looks up how many previous orders a customer has placed.
type VisitCounter interface {
	VisitCount(ctx context.Context, phone string) (int, error)
}

type visitResult struct {
	count int
	err   error
}

// visitMemo shares one lookup per phone across a single evaluation pass.
// A failed lookup is retried once before the failure is remembered.
type visitMemo struct {
	next    VisitCounter
	timeout time.Duration

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]visitResult
}

func newVisitMemo(next VisitCounter, timeout time.Duration) *visitMemo {
	return &visitMemo{next: next, timeout: timeout, done: make(map[string]visitResult)}
}

func (m *visitMemo) VisitCount(ctx context.Context, phone string) (int, error) {
	m.mu.Lock()
	if r, ok := m.done[phone]; ok {
		m.mu.Unlock()
		return r.count, r.err
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(phone, func() (any, error) {
		m.mu.Lock()
		r, ok := m.done[phone]
		m.mu.Unlock()
		if ok {
			return r.count, r.err
		}
		n, err := m.lookup(ctx, phone)
		m.mu.Lock()
		m.done[phone] = visitResult{count: n, err: err}
		m.mu.Unlock()
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (m *visitMemo) lookup(ctx context.Context, phone string) (int, error) {
	if m.next == nil {
		return 0, errNoVisitCounter
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		lctx, cancel := context.WithTimeout(ctx, m.timeout)
		n, err := m.next.VisitCount(lctx, phone)
		cancel()
		if err == nil {
			return n, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return 0, lastErr
}
