package worker

import (
	"time"

	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Task is one job handed to a Handler.
type Task struct {
	Queue    types.QueueName
	Job      queue.Job
	WorkerID string
	Resumed  bool // the job was already Started when the worker picked it up
}

// Result is the outcome of one processed job.
type Result struct {
	JobID        types.JobID
	Success      bool
	Output       string           // handler output, committed as the finish payload
	Error        error            // handler error, the job stays Started
	Duration     time.Duration    // handler run time
	StartCommit  types.CommitHash // null when the job was resumed
	FinishCommit types.CommitHash // null on failure
	Resumed      bool
}
