// Package stage defines the contract pipeline stages implement.
package stage

import (
	"context"

	"podpipe/internal/jobs"
)

// Handler is implemented by each pipeline stage (acquire, transcode, publish).
//
// Prepare validates inputs and may short-circuit the job (for example when
// the content token is already in the feed). Execute performs the work and
// mutates the job in place; the caller persists the job after each phase.
type Handler interface {
	Prepare(ctx context.Context, job *jobs.Job) error
	Execute(ctx context.Context, job *jobs.Job) error
	HealthCheck(ctx context.Context) Health
}
