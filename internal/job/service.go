package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
)

const dayFormat = "2006-01-02"

// Searcher runs one validated search. *search.Searcher implements it.
type Searcher interface {
	Search(ctx context.Context, req search.Request, rep search.Reporter) (*search.Result, error)
}

type Service struct {
	store        *Store
	quota        QuotaStore
	searcher     Searcher
	limits       search.Limits
	maxDailyRuns int
	notify       func()
	now          func() time.Time
}

func NewService(store *Store, quota QuotaStore, searcher Searcher, limits search.Limits, maxDailyRuns int) *Service {
	return &Service{
		store:        store,
		quota:        quota,
		searcher:     searcher,
		limits:       limits,
		maxDailyRuns: maxDailyRuns,
		notify:       func() {},
		now:          time.Now,
	}
}

// SetNotify registers the callback that wakes the worker pool after Submit.
func (s *Service) SetNotify(fn func()) {
	if fn != nil {
		s.notify = fn
	}
}

func (s *Service) today() string {
	return s.now().UTC().Format(dayFormat)
}

// Submit validates the request, checks the owner's daily quota and queues a
// job. No job is created when the quota is used up.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if err := req.Validate(s.limits); err != nil {
		return nil, err
	}
	day := s.today()
	if err := s.checkQuota(ctx, req.OwnerID, day); err != nil {
		return nil, err
	}

	j := s.store.Create(req.OwnerID, day, req.Request)
	slog.Info("job queued", "job", j.ID, "owner", j.OwnerID,
		"channels", len(j.Request.Channels), "keywords", len(j.Request.Keywords))
	s.notify()
	return j, nil
}

// Process runs a claimed job and records its outcome in the store. The
// returned error is for logging only; the job is already marked failed.
func (s *Service) Process(ctx context.Context, j *Job) error {
	rep := search.ReporterFunc(func(p float64, msg string) {
		s.store.Report(j.ID, p, msg)
	})

	res, err := s.searcher.Search(ctx, j.Request, rep)
	if err != nil {
		s.store.Fail(j.ID, failureMessage(ctx, err))
		return fmt.Errorf("job %s: %w", j.ID, err)
	}

	s.countRun(ctx, j.OwnerID, j.QuotaDay, res)
	s.store.Complete(j.ID, res)
	slog.Info("job done", "job", j.ID, "results", len(res.Rows),
		"skipped_channels", res.Stats.ChannelsSkipped)
	return nil
}

func (s *Service) Get(_ context.Context, req GetJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.Get(req.ID)
}

// RunSync runs a search on the caller's context without creating a job.
func (s *Service) RunSync(ctx context.Context, req SubmitRequest) (*search.Result, error) {
	if err := req.Validate(s.limits); err != nil {
		return nil, err
	}
	day := s.today()
	if err := s.checkQuota(ctx, req.OwnerID, day); err != nil {
		return nil, err
	}

	res, err := s.searcher.Search(ctx, req.Request, nil)
	if err != nil {
		if errors.Is(err, search.ErrSourceUnavailable) {
			slog.Error("sync search", "owner", req.OwnerID, "error", err)
			return nil, apperror.New(apperror.Internal, failureMessage(ctx, err))
		}
		return nil, err
	}
	s.countRun(ctx, req.OwnerID, day, res)
	return res, nil
}

// Remaining returns how many searches the owner has left today.
func (s *Service) Remaining(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, apperror.New(apperror.Unauthorized, "owner id is required")
	}
	n, err := s.quota.DailyRunCount(ctx, ownerID, s.today())
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return max(0, s.maxDailyRuns-n), nil
}

func (s *Service) checkQuota(ctx context.Context, ownerID, day string) error {
	if s.maxDailyRuns <= 0 {
		return nil
	}
	n, err := s.quota.DailyRunCount(ctx, ownerID, day)
	if err != nil {
		return fmt.Errorf("read quota: %w", err)
	}
	if n >= s.maxDailyRuns {
		return apperror.New(apperror.QuotaExceeded,
			fmt.Sprintf("daily search limit of %d reached", s.maxDailyRuns))
	}
	return nil
}

// countRun charges the owner for a search that found something. A failed
// write is logged and does not fail the search.
func (s *Service) countRun(ctx context.Context, ownerID, day string, res *search.Result) {
	if res.Empty() {
		return
	}
	if err := s.quota.IncrementDailyRunCount(context.WithoutCancel(ctx), ownerID, day); err != nil {
		slog.Error("increment quota", "owner", ownerID, "day", day, "error", err)
	}
}

func failureMessage(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "interrupted by shutdown"
	case errors.Is(err, search.ErrSourceUnavailable):
		return "message source unavailable"
	default:
		return "search failed"
	}
}
