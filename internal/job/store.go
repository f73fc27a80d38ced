package job

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
)

// Store is the in-memory job registry and the only place jobs are mutated.
// Every method takes the registry lock briefly and never does I/O under it.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	seq     uint64
	ttl     time.Duration
	maxJobs int
	now     func() time.Time
}

// NewStore creates a Store. Terminal jobs older than ttl (from creation) are
// dropped by Collect; maxJobs caps the registry size, zero means no cap.
func NewStore(ttl time.Duration, maxJobs int) *Store {
	return &Store{
		jobs:    make(map[string]*Job),
		ttl:     ttl,
		maxJobs: maxJobs,
		now:     time.Now,
	}
}

// Create registers a pending job and returns its snapshot.
func (s *Store) Create(ownerID, quotaDay string, req search.Request) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.seq++
	j := &Job{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Request:   req,
		State:     StatePending,
		Log:       "queued",
		QuotaDay:  quotaDay,
		CreatedAt: now,
		UpdatedAt: now,
		seq:       s.seq,
	}
	s.jobs[j.ID] = j
	cp := *j
	return &cp
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	cp := *j
	return &cp, nil
}

// ClaimPending moves the oldest pending job to running and returns it, or
// nil when nothing is pending.
func (s *Store) ClaimPending(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *Job
	for _, j := range s.jobs {
		if j.State == StatePending && (next == nil || j.seq < next.seq) {
			next = j
		}
	}
	if next == nil {
		return nil, nil
	}
	next.State = StateRunning
	next.Log = "starting"
	next.UpdatedAt = s.now().UTC()
	cp := *next
	return &cp, nil
}

// Report records progress for a running job. Progress never decreases; the
// log line is last-write-wins. Reports for finished or evicted jobs are
// dropped.
func (s *Store) Report(id string, progress float64, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.State.Terminal() {
		return
	}
	progress = min(max(progress, 0), 100)
	if progress > j.Progress {
		j.Progress = progress
	}
	if msg != "" {
		j.Log = msg
	}
	j.UpdatedAt = s.now().UTC()
}

// Complete marks a job done with its result.
func (s *Store) Complete(id string, res *search.Result) {
	s.finish(id, func(j *Job) {
		j.State = StateDone
		j.Progress = 100
		j.Result = res
	})
}

// Fail marks a job failed with a short, caller-safe message.
func (s *Store) Fail(id, msg string) {
	s.finish(id, func(j *Job) {
		j.State = StateFailed
		j.Error = msg
		j.Log = msg
	})
}

func (s *Store) finish(id string, apply func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.State.Terminal() {
		return
	}
	apply(j)
	j.UpdatedAt = s.now().UTC()
	j.FinishedAt = j.UpdatedAt
}

// Collect evicts terminal jobs created more than the TTL before now, then,
// while the registry is over its cap, the oldest terminal jobs. Pending and
// running jobs are never evicted, so the cap is exceeded when that many jobs
// are in flight.
func (s *Store) Collect(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if j.State.Terminal() && s.ttl > 0 && now.Sub(j.CreatedAt) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}

	if s.maxJobs <= 0 || len(s.jobs) <= s.maxJobs {
		return removed
	}

	finished := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.State.Terminal() {
			finished = append(finished, j)
		}
	}
	slices.SortFunc(finished, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, j := range finished {
		if len(s.jobs) <= s.maxJobs {
			break
		}
		delete(s.jobs, j.ID)
		removed++
	}
	if len(s.jobs) > s.maxJobs {
		slog.Warn("job registry over capacity, all remaining jobs are in flight", "jobs", len(s.jobs), "max", s.maxJobs)
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
