// Package memory is the in-process run store. Runs live only as long as the
// server process; use it for a single replica.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
)

type entry struct {
	pc        *domain.PipelineContext
	expiresAt time.Time
}

// Store is an in-memory implementation of ports.RunStore.
type Store struct {
	mu   sync.RWMutex
	runs map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

var (
	_ ports.RunStore = (*Store)(nil)
	_ ports.Sweeper  = (*Store)(nil)
)

// New creates a new in-memory store. Runs expire ttl after their last write.
func New(ttl time.Duration) *Store {
	return &Store{
		runs: make(map[string]entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *Store) Create(ctx context.Context, pc *domain.PipelineContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.runs[pc.RunID()]; exists && s.now().Before(e.expiresAt) {
		return fmt.Errorf("run %s already exists", pc.RunID())
	}

	s.runs[pc.RunID()] = entry{pc: pc.Clone(), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (*domain.PipelineContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.runs[runID]
	if !exists || !s.now().Before(e.expiresAt) {
		return nil, domain.ErrRunNotFound
	}
	return e.pc.Clone(), nil
}

func (s *Store) Save(ctx context.Context, pc *domain.PipelineContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.runs[pc.RunID()]
	if !exists || !s.now().Before(e.expiresAt) {
		return domain.ErrRunNotFound
	}

	s.runs[pc.RunID()] = entry{pc: pc.Clone(), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *Store) Delete(ctx context.Context, runID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.runs[runID]
	delete(s.runs, runID)
	return exists, nil
}

// Sweep drops expired runs.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.runs {
		if !now.Before(e.expiresAt) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored runs, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

func (s *Store) Close() error {
	return nil
}
