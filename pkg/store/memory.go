package store

import (
	"context"
	"sync/atomic"
)

// Memory keeps the snapshot in process.
type Memory struct {
	current atomic.Pointer[Snapshot]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Current returns the active snapshot.
func (m *Memory) Current(_ context.Context) (*Snapshot, error) {
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	return nil, ErrNoSnapshot
}

// Replace swaps in s.
func (m *Memory) Replace(_ context.Context, s *Snapshot) error {
	m.current.Store(s)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
