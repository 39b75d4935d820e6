// Package store provides the in-memory JobStore: a map of job ID to Job
// whose mutations are serialized per job so readers never observe a torn
// struct.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/crawlhook/internal/models"
)

// ErrJobNotFound is returned by Get/Update when no job exists for the
// given ID.
var ErrJobNotFound = errors.New("store: job not found")

// JobStore is an in-memory registry of jobs keyed by ID. Mutations replace
// the stored pointer atomically under a per-store mutex, and every read
// hands back a clone, so a caller holding a reference never sees a later
// in-place mutation — copy-on-write semantics, matching the reference
// JobStore's "no torn reads" guarantee.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// New returns an empty JobStore.
func New() *JobStore {
	return &JobStore{jobs: make(map[string]*models.Job)}
}

// Insert adds a new job. The caller retains ownership of job; Insert stores
// a clone so later caller-side mutation cannot leak into the store.
func (s *JobStore) Insert(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
}

// Get returns a clone of the job with the given ID, or ErrJobNotFound.
func (s *JobStore) Get(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update applies fn to a clone of the stored job and persists the result.
// fn is invoked while holding the store lock so two concurrent Updates for
// the same (or different) job IDs cannot interleave; fn should be quick and
// must not call back into the store. Update bumps UpdatedAt after fn runs
// unless the job is already terminal, per the "no field changes after
// terminal" invariant.
func (s *JobStore) Update(id string, fn func(job *models.Job)) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	wasTerminal := existing.Progress != nil && existing.Progress.Status.Terminal()
	job := existing.Clone()
	if !wasTerminal {
		fn(job)
		job.UpdatedAt = time.Now()
	}
	s.jobs[id] = job
	return job.Clone(), nil
}

// Len returns the number of jobs currently tracked (all kinds, all
// states) — a diagnostic helper, not part of the spec'd contract.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
