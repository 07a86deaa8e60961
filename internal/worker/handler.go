package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Environment passed to command handlers.
const (
	EnvJobID      = "GIT_QUEUE_JOB_ID"
	EnvJobCommit  = "GIT_QUEUE_JOB_COMMIT"
	EnvJobPayload = "GIT_QUEUE_JOB_PAYLOAD"
	EnvQueueName  = "GIT_QUEUE_NAME"
	EnvWorkerID   = "GIT_QUEUE_WORKER_ID"
)

// Handler does the work of one job. The returned output becomes the payload
// of the job finished message.
type Handler interface {
	Handle(ctx context.Context, task Task) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task Task) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, task Task) (string, error) {
	return f(ctx, task)
}

// CommandHandler runs a shell command per job. The job is described in the
// GIT_QUEUE_* environment variables and the trimmed stdout is the output.
type CommandHandler struct {
	Command string
	Shell   string // default "sh"
	Dir     string
}

// CommandError carries the stderr of a failed command.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (h CommandHandler) Handle(ctx context.Context, task Task) (string, error) {
	shell := h.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", h.Command)
	cmd.Dir = h.Dir
	cmd.Env = append(os.Environ(),
		EnvJobID+"="+task.Job.ID().String(),
		EnvJobCommit+"="+task.Job.CommitHash().String(),
		EnvJobPayload+"="+task.Job.Payload(),
		EnvQueueName+"="+task.Queue.String(),
		EnvWorkerID+"="+task.WorkerID,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &CommandError{Command: h.Command, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}
