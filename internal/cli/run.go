package cli

// ============================================================================
// Long running commands
// Purpose: work (job processing loop) and serve (status server)
//
// Both commands stop gracefully when the context given to ExecuteContext
// ends (main wires it to SIGINT / SIGTERM). The goroutines of one command run
// under an errgroup: the first failure cancels the rest.
// ============================================================================

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChuLiYu/git-queue/internal/metrics"
	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/internal/server"
	"github.com/ChuLiYu/git-queue/internal/storage/gitrepo"
	"github.com/ChuLiYu/git-queue/internal/worker"
)

// ErrNoWorkerCommand indicates `work` without worker.command.
var ErrNoWorkerCommand = errors.New("worker command is required (use --command or worker.command)")

// newRegistry returns a registry with the queue collector and the process
// and Go runtime collectors.
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

func (a *app) metricsAddr() string {
	return fmt.Sprintf(":%d", a.cfg.Metrics.Port)
}

func (a *app) buildWorkCommand() *cobra.Command {
	var (
		command string
		drain   bool
	)
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Process the queue, running a command for every job",
		Long: `Start every job in order, run the command with the job in its environment
(GIT_QUEUE_JOB_ID, GIT_QUEUE_JOB_COMMIT, GIT_QUEUE_JOB_PAYLOAD) and finish the
job with the command's stdout. A failing command leaves the job started and
stops the worker; the next run resumes it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("command") {
				a.cfg.Worker.Command = command
			}
			return a.work(cmd.Context(), drain)
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "shell command run for every job")
	cmd.Flags().BoolVar(&drain, "drain", false, "exit once the queue is empty")
	return cmd
}

func (a *app) work(ctx context.Context, drain bool) error {
	if a.cfg.Worker.Command == "" {
		return ErrNoWorkerCommand
	}

	repo, err := a.repository()
	if err != nil {
		return err
	}

	reg, collector := newRegistry()
	workerID := uuid.NewString()

	q, err := a.openQueue(ctx, repo, queue.WithRecorder(collector), queue.WithWorkerID(workerID))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	opts := []worker.Option{worker.WithLogger(a.logger), worker.WithRecorder(collector)}
	if !drain {
		changes, err := repo.Watch(runCtx)
		if err != nil {
			a.logger.Warn("repository watch unavailable, polling only", zap.Error(err))
		} else {
			opts = append(opts, worker.WithNotifications(changes))
		}
	}

	w := worker.New(q, worker.CommandHandler{Command: a.cfg.Worker.Command}, worker.Config{
		ID:           workerID,
		PollInterval: a.cfg.Worker.PollInterval,
		Timeout:      a.cfg.Worker.Timeout,
		Drain:        drain,
	}, opts...)

	if a.cfg.Metrics.Enabled && !drain {
		srv := a.newServer(repo, reg, collector)
		g.Go(func() error {
			return srv.ListenAndServe(runCtx, a.metricsAddr())
		})
	}

	g.Go(func() error {
		defer stop()
		return w.Run(runCtx)
	})

	return g.Wait()
}

func (a *app) buildServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queue status and metrics over HTTP",
		Long: `Expose GET /healthz, GET /metrics and GET /queues/{name}.
When a queue is configured its gauges are refreshed on every repository change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Metrics.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 9090, "listen port")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	repo, err := a.repository()
	if err != nil {
		return err
	}

	reg, collector := newRegistry()
	srv := a.newServer(repo, reg, collector)

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Queue.Name != "" {
		q, err := a.openQueue(ctx, repo, queue.WithRecorder(collector))
		if err != nil {
			return err
		}
		changes, err := repo.Watch(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return a.refreshOnChange(gctx, q, changes)
		})
	}

	g.Go(func() error {
		return srv.ListenAndServe(gctx, a.metricsAddr())
	})

	return g.Wait()
}

// refreshOnChange reloads q whenever the repository changes, which keeps the
// queue gauges current.
func (a *app) refreshOnChange(ctx context.Context, q *queue.Queue, changes <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := q.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Warn("queue reload failed", zap.String("queue", q.Name().String()), zap.Error(err))
				continue
			}
			a.logger.Debug("queue reloaded", zap.String("queue", q.Name().String()), zap.Int("messages", q.Log().Len()))
		}
	}
}

func (a *app) newServer(repo *gitrepo.Repository, reg *prometheus.Registry, collector *metrics.Collector) *server.Server {
	return server.NewServer(repo,
		server.WithLogger(a.logger),
		server.WithGatherer(reg),
		server.WithQueueOptions(queue.WithRecorder(collector)),
	)
}
