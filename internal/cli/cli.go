// ============================================================================
// Git Queue CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: cobra command tree driving a queue stored in a git repository
//
// Command Structure:
//   git-queue                      # Root command
//   ├── init                       # Create the repository if missing
//   ├── create-job                 # Append a new job
//   ├── next-job                   # Show the job a worker would take next
//   ├── start-job                  # Mark a job (default: next job) as started
//   ├── finish-job                 # Mark a job (default: job in flight) as finished
//   ├── status                     # Queue summary
//   ├── log                        # Queue messages
//   ├── verify                     # Replay the log and report invariant violations
//   ├── work                       # Run a command for every job
//   ├── serve                      # Status and metrics HTTP server
//   └── action                     # GitHub Action entry point (INPUT_ACTION)
//
// Persistent flags:
//   --config, -c     config file (default git-queue.yaml, may be absent)
//   --repo-dir       repository holding the queue
//   --queue, -q      queue name
//   --log-level      debug | info | warn | error
//   --output-file    outputs file, defaults to $GITHUB_OUTPUT
//
// Configuration Management:
//   defaults -> YAML file -> environment -> flags (see internal/config).
//
// Outputs:
//   Job commands publish name=value pairs (job_created, job_started,
//   job_finished, job_found, job_commit, job_id, job_payload) on stdout and
//   append them to the outputs file when one is configured.
//
// Error Handling:
//   Any error aborts the command; main prints it to stderr and exits with 1.
//   Logs go to stderr so stdout stays machine readable.
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChuLiYu/git-queue/internal/config"
	"github.com/ChuLiYu/git-queue/internal/output"
	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/internal/storage/gitrepo"
)

// Version is reported by --version.
const Version = "1.0.0"

// app holds the state shared by the commands of one invocation.
type app struct {
	configFile string
	flags      struct {
		repoDir    string
		queueName  string
		logLevel   string
		outputFile string
	}

	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func BuildCLI() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "git-queue",
		Short: "git-queue: a job queue stored in git commits",
		Long: `git-queue keeps a FIFO job queue in the commit history of a git repository:
- every create / start / finish is one empty commit
- the queue state is rebuilt from history on every command
- at most one job is in flight per queue
- commits can be signed with an OpenPGP key`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", config.DefaultFile, "config file path")
	pf.StringVar(&a.flags.repoDir, "repo-dir", "", "git repository holding the queue")
	pf.StringVarP(&a.flags.queueName, "queue", "q", "", "queue name")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.outputFile, "output-file", "", "file receiving command outputs")

	rootCmd.AddCommand(a.buildInitCommand())
	rootCmd.AddCommand(a.buildCreateJobCommand())
	rootCmd.AddCommand(a.buildNextJobCommand())
	rootCmd.AddCommand(a.buildStartJobCommand())
	rootCmd.AddCommand(a.buildFinishJobCommand())
	rootCmd.AddCommand(a.buildStatusCommand())
	rootCmd.AddCommand(a.buildLogCommand())
	rootCmd.AddCommand(a.buildVerifyCommand())
	rootCmd.AddCommand(a.buildWorkCommand())
	rootCmd.AddCommand(a.buildServeCommand())
	rootCmd.AddCommand(a.buildActionCommand())

	return rootCmd
}

// setup loads the configuration layers and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	flags := cmd.Flags()
	cfg, err := config.Load(a.configFile, flags.Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if flags.Changed("repo-dir") {
		cfg.Repo.Dir = a.flags.repoDir
	}
	if flags.Changed("queue") {
		cfg.Queue.Name = a.flags.queueName
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("output-file") {
		cfg.Output.File = a.flags.outputFile
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Log.Development, a.stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

// repository binds the configured directory, loading the signing keyring
// when one is configured.
func (a *app) repository() (*gitrepo.Repository, error) {
	opts := []gitrepo.Option{gitrepo.WithLogger(a.logger)}

	if a.cfg.Commit.Keyring != "" {
		keyring, err := gitrepo.ReadKeyring(a.cfg.Commit.Keyring)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gitrepo.WithKeyring(keyring))
	}
	if a.cfg.Commit.Passphrase != "" {
		opts = append(opts, gitrepo.WithPassphrase(a.cfg.Commit.Passphrase))
	}

	return gitrepo.New(a.cfg.Repo.Dir, opts...), nil
}

// queueOptions are the options every queue of this invocation is built with.
func (a *app) queueOptions(extra ...queue.Option) ([]queue.Option, error) {
	commitOpts, err := a.cfg.CommitOptions()
	if err != nil {
		return nil, err
	}
	return append([]queue.Option{queue.WithCommitOptions(commitOpts)}, extra...), nil
}

// openQueue loads the configured queue from storage.
func (a *app) openQueue(ctx context.Context, storage queue.Storage, extra ...queue.Option) (*queue.Queue, error) {
	name, err := a.cfg.QueueName()
	if err != nil {
		return nil, err
	}
	opts, err := a.queueOptions(extra...)
	if err != nil {
		return nil, err
	}
	return queue.New(ctx, name, storage, opts...)
}

// openConfiguredQueue is openQueue on the configured repository.
func (a *app) openConfiguredQueue(ctx context.Context) (*queue.Queue, error) {
	repo, err := a.repository()
	if err != nil {
		return nil, err
	}
	return a.openQueue(ctx, repo)
}

func (a *app) publish(o *output.Outputs) error {
	return output.NewWriter(a.cfg.Output.File, a.stdout).Write(o)
}
