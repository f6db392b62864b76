package fabricator

import (
	"time"

	"github.com/fnforge/fnforge/internal/plan"
)

// DeployResult is the outcome of one endpoint's create, update, or delete.
// Exactly one result is produced per endpoint referenced anywhere in the
// plan, whether the operation succeeded, failed, or was aborted.
type DeployResult struct {
	Endpoint *plan.Endpoint
	Duration time.Duration
	Err      error
}

// Summary aggregates every result of one plan application.
type Summary struct {
	TotalTime time.Duration
	Results   []DeployResult
}

// Failed reports whether any endpoint ended in an error.
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
