package actor

import (
	"context"
	"sync"
)

type turn[A Actor] struct {
	ctx      context.Context
	fn       func(ctx context.Context, a A) error
	reply    chan error
	reminder string
	after    func(error)
}

func (t turn[A]) finish(err error) {
	if t.reply != nil {
		t.reply <- err
	}
	if t.after != nil {
		t.after(err)
	}
}

type mailbox[A Actor] struct {
	id    string
	queue chan turn[A]

	mu      sync.Mutex
	pending map[string]bool
}

func newMailbox[A Actor](id string, size int) *mailbox[A] {
	return &mailbox[A]{
		id:      id,
		queue:   make(chan turn[A], size),
		pending: map[string]bool{},
	}
}

// markPending reports false when a turn for the reminder is already queued.
func (m *mailbox[A]) markPending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[name] {
		return false
	}
	m.pending[name] = true
	return true
}

func (m *mailbox[A]) clearPending(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, name)
}
