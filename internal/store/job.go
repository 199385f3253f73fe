package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minutedhq/minuted/internal/model"
)

// ErrNotFound is returned when a job identifier is unknown.
var ErrNotFound = errors.New("job not found")

// JobStore tracks summarization jobs for the life of the process.
// There is no eviction and no persistence: a restart loses all records,
// which is an accepted limitation of this service.
type JobStore interface {
	Create(id string) error
	Get(id string) (*model.Job, error)
	SetCompleted(id string) error
	SetFailed(id string, errText string) error
}

// MemoryJobStore is the in-process JobStore implementation.
// A single goroutine owns each record's terminal transition (the job's
// orchestration goroutine), but the map itself is shared across requests,
// so all access goes through the mutex.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*model.Job),
	}
}

// Create inserts a new record in the "started" state.
func (s *MemoryJobStore) Create(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job %s already exists", id)
	}

	s.jobs[id] = &model.Job{
		ID:        id,
		Status:    model.JobStatusStarted,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// Get returns a copy of the record, or ErrNotFound.
func (s *MemoryJobStore) Get(id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *job
	return &copied, nil
}

// SetCompleted moves a started job to "completed".
func (s *MemoryJobStore) SetCompleted(id string) error {
	return s.finish(id, model.JobStatusCompleted, nil)
}

// SetFailed moves a started job to "failed" and records the error text.
func (s *MemoryJobStore) SetFailed(id string, errText string) error {
	return s.finish(id, model.JobStatusFailed, &errText)
}

func (s *MemoryJobStore) finish(id string, status model.JobStatus, errText *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}

	// Transitions are terminal: a finished job never moves again.
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s", id, job.Status)
	}

	now := time.Now().UTC()
	job.Status = status
	job.Error = errText
	job.FinishedAt = &now
	return nil
}
