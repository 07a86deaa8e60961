// ============================================================================
// Git Queue Job Source Interface
// ============================================================================
//
// Package: internal/worker
// File: source.go
// Purpose: the slice of the queue API a worker needs. *queue.Queue satisfies
// it; tests use an in-memory fake.
//
// ============================================================================

package worker

import (
	"context"

	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// JobSource hands out jobs one at a time and records their transitions.
type JobSource interface {
	Name() types.QueueName

	// Reload refreshes the source from storage; commits appended by other
	// processes become visible.
	Reload(ctx context.Context) error

	// StartedJob is the job in flight, the null job if none.
	StartedJob() queue.Job

	// NextJob is the job to work on next, the null job if the queue is empty.
	NextJob() queue.Job

	MarkJobAsStarted(ctx context.Context, id types.JobID, payload string) (types.CommitHash, error)
	MarkJobAsFinished(ctx context.Context, id types.JobID, payload string) (types.CommitHash, error)
}

var _ JobSource = (*queue.Queue)(nil)
