package cli

// ============================================================================
// Job commands
// Purpose: init / create-job / next-job / start-job / finish-job / action
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChuLiYu/git-queue/internal/output"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Actions accepted by `git-queue action`.
const (
	ActionCreateJob = "create-job"
	ActionNextJob   = "next-job"
	ActionStartJob  = "start-job"
	ActionFinishJob = "finish-job"
)

var actions = []string{ActionCreateJob, ActionNextJob, ActionStartJob, ActionFinishJob}

var (
	// ErrNoPendingJob is returned by start-job when the queue is empty
	ErrNoPendingJob = errors.New("no pending job")

	// ErrNoJobInFlight is returned by finish-job when no job is started
	ErrNoJobInFlight = errors.New("no job in flight")

	// ErrInvalidAction indicates an INPUT_ACTION outside the known actions
	ErrInvalidAction = errors.New("invalid action")
)

// jobFlags are the per-command job inputs; set flags override the
// INPUT_JOB_ID / INPUT_JOB_PAYLOAD environment.
type jobFlags struct {
	id      string
	payload string
}

func (f *jobFlags) register(cmd *cobra.Command, withID bool) {
	cmd.Flags().StringVarP(&f.payload, "payload", "p", "", "job payload")
	if withID {
		cmd.Flags().StringVar(&f.id, "job-id", "", "job id (default depends on the command)")
	}
}

func (a *app) applyJobFlags(cmd *cobra.Command, f *jobFlags) {
	if cmd.Flags().Changed("payload") {
		a.cfg.Job.Payload = f.payload
	}
	if cmd.Flags().Lookup("job-id") != nil && cmd.Flags().Changed("job-id") {
		a.cfg.Job.ID = f.id
	}
}

func (a *app) buildInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the queue repository if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			if err := repo.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Initialized queue repository in %s\n", repo.Dir())
			return nil
		},
	}
}

func (a *app) buildCreateJobCommand() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "create-job",
		Short: "Append a new job to the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.applyJobFlags(cmd, &f)
			return a.createJob(cmd.Context())
		},
	}
	f.register(cmd, false)
	return cmd
}

func (a *app) buildNextJobCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next-job",
		Short: "Show the next job to process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.nextJob(cmd.Context())
		},
	}
}

func (a *app) buildStartJobCommand() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "start-job",
		Short: "Mark a job as started (default: the next job)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.applyJobFlags(cmd, &f)
			return a.startJob(cmd.Context())
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) buildFinishJobCommand() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "finish-job",
		Short: "Mark a job as finished (default: the job in flight)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.applyJobFlags(cmd, &f)
			return a.finishJob(cmd.Context())
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) buildActionCommand() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "action [create-job|next-job|start-job|finish-job]",
		Short: "Run the action named by INPUT_ACTION (GitHub Action entry point)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyJobFlags(cmd, &f)
			if len(args) == 1 {
				a.cfg.Action = args[0]
			}
			return a.runAction(cmd.Context(), a.cfg.Action)
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) runAction(ctx context.Context, action string) error {
	a.logger.Debug("running action",
		zap.String("action", action),
		zap.String("repo_dir", a.cfg.Repo.Dir),
		zap.String("queue", a.cfg.Queue.Name))

	switch strings.TrimSpace(action) {
	case ActionCreateJob:
		return a.createJob(ctx)
	case ActionNextJob:
		return a.nextJob(ctx)
	case ActionStartJob:
		return a.startJob(ctx)
	case ActionFinishJob:
		return a.finishJob(ctx)
	default:
		return fmt.Errorf("%w %q: actions can only be: %s", ErrInvalidAction, action, strings.Join(actions, ", "))
	}
}

// ============================================================================
// Actions
// ============================================================================

func (a *app) createJob(ctx context.Context) error {
	q, err := a.openConfiguredQueue(ctx)
	if err != nil {
		return err
	}

	job, err := q.CreateJob(ctx, a.cfg.Job.Payload)
	if err != nil {
		return err
	}
	a.logger.Info("job created", zap.Stringer("job", job.ID()), zap.Stringer("commit", job.CommitHash()))

	o := output.New()
	o.Set("job_created", "true")
	o.Set("job_commit", job.CommitHash().String())
	o.Set("job_id", job.ID().String())
	return a.publish(o)
}

func (a *app) nextJob(ctx context.Context) error {
	q, err := a.openConfiguredQueue(ctx)
	if err != nil {
		return err
	}

	job := q.NextJob()

	o := output.New()
	o.Set("job_found", fmt.Sprint(!job.IsNull()))
	if !job.IsNull() {
		o.Set("job_commit", job.CommitHash().String())
		o.Set("job_id", job.ID().String())
		o.Set("job_payload", job.Payload())
	}
	return a.publish(o)
}

func (a *app) startJob(ctx context.Context) error {
	q, err := a.openConfiguredQueue(ctx)
	if err != nil {
		return err
	}

	id, err := a.cfg.JobID()
	if err != nil {
		return err
	}
	if id.IsNull() {
		next := q.NextJob()
		if next.IsNull() {
			return fmt.Errorf("queue %s: %w", q.Name(), ErrNoPendingJob)
		}
		id = next.ID()
	}

	hash, err := q.MarkJobAsStarted(ctx, id, a.cfg.Job.Payload)
	if err != nil {
		return err
	}
	a.logger.Info("job started", zap.Stringer("job", id), zap.Stringer("commit", hash))

	return a.publishTransition("job_started", id, hash)
}

func (a *app) finishJob(ctx context.Context) error {
	q, err := a.openConfiguredQueue(ctx)
	if err != nil {
		return err
	}

	id, err := a.cfg.JobID()
	if err != nil {
		return err
	}
	if id.IsNull() {
		started := q.StartedJob()
		if started.IsNull() {
			return fmt.Errorf("queue %s: %w", q.Name(), ErrNoJobInFlight)
		}
		id = started.ID()
	}

	hash, err := q.MarkJobAsFinished(ctx, id, a.cfg.Job.Payload)
	if err != nil {
		return err
	}
	a.logger.Info("job finished", zap.Stringer("job", id), zap.Stringer("commit", hash))

	return a.publishTransition("job_finished", id, hash)
}

func (a *app) publishTransition(flag string, id types.JobID, hash types.CommitHash) error {
	o := output.New()
	o.Set(flag, "true")
	o.Set("job_commit", hash.String())
	o.Set("job_id", id.String())
	return a.publish(o)
}
