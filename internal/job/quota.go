package job

import "context"

// QuotaStore persists how many non-empty searches an owner ran per UTC day.
// Day keys are YYYY-MM-DD.
type QuotaStore interface {
	DailyRunCount(ctx context.Context, ownerID, day string) (int, error)
	IncrementDailyRunCount(ctx context.Context, ownerID, day string) error
}
