package store

import (
	"testing"
	"time"

	"github.com/jmylchreest/crawlhook/internal/models"
)

func newQueuedJob(id string) *models.Job {
	now := time.Now()
	return &models.Job{
		ID:   id,
		Kind: models.JobKindPlayground,
		Progress: &models.Progress{
			Status:    models.JobStatusQueued,
			StartTime: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := New()
	job := newQueuedJob("job-1")
	s.Insert(job)

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "job-1" {
		t.Errorf("ID = %q, want job-1", got.ID)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := New()
	if _, err := s.Get("missing"); err != ErrJobNotFound {
		t.Errorf("Get() error = %v, want ErrJobNotFound", err)
	}
}

func TestGet_ReturnsClone(t *testing.T) {
	s := New()
	s.Insert(newQueuedJob("job-1"))

	a, _ := s.Get("job-1")
	a.Progress.Status = models.JobStatusRunning

	b, _ := s.Get("job-1")
	if b.Progress.Status != models.JobStatusQueued {
		t.Error("mutating a returned clone should not affect the stored job")
	}
}

func TestUpdate_MutatesAndBumpsUpdatedAt(t *testing.T) {
	s := New()
	job := newQueuedJob("job-1")
	job.UpdatedAt = job.CreatedAt
	s.Insert(job)

	time.Sleep(time.Millisecond)

	updated, err := s.Update("job-1", func(j *models.Job) {
		j.Progress.Status = models.JobStatusRunning
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Progress.Status != models.JobStatusRunning {
		t.Errorf("Status = %v, want running", updated.Progress.Status)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("UpdatedAt should be bumped after CreatedAt")
	}
}

func TestUpdate_NoopOnceTerminal(t *testing.T) {
	s := New()
	job := newQueuedJob("job-1")
	end := time.Now()
	job.Progress.Status = models.JobStatusCompleted
	job.Progress.EndTime = &end
	s.Insert(job)

	before, _ := s.Get("job-1")

	_, err := s.Update("job-1", func(j *models.Job) {
		j.Progress.CurrentURL = "https://example.com/should-not-apply"
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	after, _ := s.Get("job-1")
	if after.Progress.CurrentURL != "" {
		t.Error("Update should be a no-op once the job is terminal")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("UpdatedAt must not change once the job is terminal")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := New()
	if _, err := s.Update("missing", func(*models.Job) {}); err != ErrJobNotFound {
		t.Errorf("Update() error = %v, want ErrJobNotFound", err)
	}
}

func TestLen_CountsEachInsertedJob(t *testing.T) {
	s := New()
	s.Insert(newQueuedJob("a"))
	s.Insert(newQueuedJob("b"))
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
