package main

// ============================================================================
// git-queue demo
// Walks through the queue lifecycle in a throw-away repository:
//
//	go run ./cmd/demo start     # create jobs, start one, then "crash"
//	go run ./cmd/demo recover   # a new worker resumes the job in flight
//
// Both modes use the directory given as second argument (default:
// $TMPDIR/git-queue-demo), so run `start` first and `recover` afterwards.
// ============================================================================

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/internal/storage/gitrepo"
	"github.com/ChuLiYu/git-queue/internal/worker"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

const demoJobs = 5

var demoQueue = types.MustQueueName("demo")

func main() {
	mode, dir, ok := parseArgs(os.Args[1:])
	if !ok {
		fmt.Println("Usage: go run ./cmd/demo <start|recover> [dir]")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	repo := gitrepo.New(dir, gitrepo.WithLogger(logger))

	switch mode {
	case "start":
		err = start(ctx, repo)
	case "recover":
		err = recoverQueue(ctx, repo, logger)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

// parseArgs reads "<mode> [dir]".
func parseArgs(args []string) (mode, dir string, ok bool) {
	if len(args) < 1 || len(args) > 2 {
		return "", "", false
	}
	dir = filepath.Join(os.TempDir(), "git-queue-demo")
	if len(args) == 2 {
		dir = args[1]
	}
	return args[0], dir, true
}

func start(ctx context.Context, repo *gitrepo.Repository) error {
	if err := os.RemoveAll(repo.Dir()); err != nil {
		return err
	}
	if err := repo.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("✓ Repository initialized in %s\n", repo.Dir())

	q, err := queue.New(ctx, demoQueue, repo)
	if err != nil {
		return err
	}

	for i := 1; i <= demoJobs; i++ {
		job, err := q.CreateJob(ctx, fmt.Sprintf(`{"task":"job_%d"}`, i))
		if err != nil {
			return err
		}
		fmt.Printf("  🈺 created %s\n", job)
	}

	next := q.NextJob()
	hash, err := q.MarkJobAsStarted(ctx, next.ID(), "")
	if err != nil {
		return err
	}
	fmt.Printf("  👔 started job %s in commit %s\n", next.ID(), hash.Short())

	printStats("Status before the crash", q)
	fmt.Println("\n💥 Simulated crash: the process exits with job 1 still in flight.")
	fmt.Println("💡 Run `go run ./cmd/demo recover` to resume from the commit history.")
	return nil
}

func recoverQueue(ctx context.Context, repo *gitrepo.Repository, logger *zap.Logger) error {
	q, err := queue.New(ctx, demoQueue, repo, queue.WithWorkerID("demo-worker"))
	if err != nil {
		return err
	}
	printStats("Status rebuilt from history", q)

	if inFlight := q.StartedJob(); !inFlight.IsNull() {
		fmt.Printf("\n⚠️  Found %s in flight, it will be resumed first\n", inFlight)
	}

	handler := worker.HandlerFunc(func(ctx context.Context, task worker.Task) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		return fmt.Sprintf(`{"processed":%q,"resumed":%t}`, task.Job.Payload(), task.Resumed), nil
	})

	w := worker.New(q, handler, worker.Config{ID: "demo-worker", Drain: true}, worker.WithLogger(logger))
	if err := w.Run(ctx); err != nil {
		return err
	}

	printStats("Final status", q)
	if err := q.Verify(); err != nil {
		return fmt.Errorf("history check failed: %w", err)
	}
	fmt.Println("\n✓ History verified: every job was started and finished exactly once.")
	return nil
}

func printStats(title string, q *queue.Queue) {
	stats := q.Stats()
	fmt.Printf("\n📊 %s:\n", title)
	fmt.Printf("  Pending:   %d\n", stats.Pending)
	fmt.Printf("  In-Flight: %d\n", stats.InFlight)
	fmt.Printf("  Finished:  %d\n", stats.Finished)
	fmt.Printf("  ─────────────────\n")
	fmt.Printf("  Total:     %d\n", stats.Total)
}
