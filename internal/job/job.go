package job

import (
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
)

type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Job is one asynchronous search run. Values handed out by the Store are
// snapshots; Result is never mutated after completion.
type Job struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"-"`
	Request    search.Request `json:"request"`
	State      State          `json:"state"`
	Progress   float64        `json:"progress"`
	Log        string         `json:"log"`
	Error      string         `json:"error,omitempty"`
	Result     *search.Result `json:"result,omitempty"`
	QuotaDay   string         `json:"quotaDay"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitzero"`

	seq uint64
}
