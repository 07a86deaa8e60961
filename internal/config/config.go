// ============================================================================
// Git Queue Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: load settings in layers, later layers win:
//
//   1. built-in defaults (Default)
//   2. YAML file (default git-queue.yaml)
//   3. environment variables, named after the GitHub Action inputs
//      (INPUT_QUEUE_NAME, INPUT_GIT_REPO_DIR, ...)
//   4. command line flags (applied by the cli package)
//
// Example file:
//
//	repo:
//	  dir: .
//	queue:
//	  name: deployments
//	commit:
//	  author: "Deploy Bot <bot@example.com>"
//	  signing_key: 88966A5B8C01BD04
//	  keyring: /secrets/signing-key.asc
//	log:
//	  level: debug
//	metrics:
//	  enabled: true
//	  port: 9090
//	worker:
//	  command: ./deploy.sh
//	  poll_interval: 5s
//	  timeout: 10m
//
// ============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// DefaultFile is read when no --config flag is given; it may be absent.
const DefaultFile = "git-queue.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the complete configuration.
type Config struct {
	// Action selects the command run by `git-queue action`.
	Action string `yaml:"-" env:"INPUT_ACTION"`

	Repo struct {
		Dir string `yaml:"dir" env:"INPUT_GIT_REPO_DIR"`
	} `yaml:"repo"`

	Queue struct {
		Name string `yaml:"name" env:"INPUT_QUEUE_NAME"`
	} `yaml:"queue"`

	// Job inputs only come from the environment or flags.
	Job struct {
		ID      string `yaml:"-" env:"INPUT_JOB_ID"`
		Payload string `yaml:"-" env:"INPUT_JOB_PAYLOAD"`
	} `yaml:"-"`

	Commit struct {
		Author     string `yaml:"author" env:"INPUT_GIT_COMMIT_AUTHOR"`
		SigningKey string `yaml:"signing_key" env:"INPUT_GIT_COMMIT_GPG_SIGN"`
		NoGPGSign  bool   `yaml:"no_gpg_sign" env:"INPUT_GIT_COMMIT_NO_GPG_SIGN"`
		Keyring    string `yaml:"keyring" env:"GIT_QUEUE_KEYRING"`
		Passphrase string `yaml:"passphrase" env:"GIT_QUEUE_PASSPHRASE"`
	} `yaml:"commit"`

	Log struct {
		Level       string `yaml:"level" env:"GIT_QUEUE_LOG_LEVEL"`
		Development bool   `yaml:"development" env:"GIT_QUEUE_LOG_DEVELOPMENT"`
	} `yaml:"log"`

	Metrics struct {
		Enabled bool `yaml:"enabled" env:"GIT_QUEUE_METRICS_ENABLED"`
		Port    int  `yaml:"port" env:"GIT_QUEUE_METRICS_PORT"`
	} `yaml:"metrics"`

	Worker struct {
		Command      string        `yaml:"command" env:"GIT_QUEUE_WORKER_COMMAND"`
		PollInterval time.Duration `yaml:"poll_interval" env:"GIT_QUEUE_WORKER_POLL_INTERVAL"`
		Timeout      time.Duration `yaml:"timeout" env:"GIT_QUEUE_WORKER_TIMEOUT"`
	} `yaml:"worker"`

	Output struct {
		File string `yaml:"file" env:"GITHUB_OUTPUT"`
	} `yaml:"output"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{}
	cfg.Repo.Dir = "."
	cfg.Log.Level = "info"
	cfg.Metrics.Port = 9090
	cfg.Worker.PollInterval = 5 * time.Second
	return cfg
}

// Load applies the file and environment layers on top of the defaults. A
// missing file is an error only when explicit is true.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// Validate checks every value that is set. The queue name is not required
// here since `init` runs without one.
func (c *Config) Validate() error {
	var errs []error

	if c.Repo.Dir == "" {
		errs = append(errs, errors.New("repo.dir is empty"))
	}
	if c.Queue.Name != "" {
		if _, err := types.NewQueueName(c.Queue.Name); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Job.ID != "" {
		if _, err := types.ParseJobID(c.Job.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.CommitOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if c.Worker.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("worker.poll_interval must be positive: %s", c.Worker.PollInterval))
	}
	if c.Worker.Timeout < 0 {
		errs = append(errs, fmt.Errorf("worker.timeout must not be negative: %s", c.Worker.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// QueueName returns the validated queue name; an empty name is an error.
func (c *Config) QueueName() (types.QueueName, error) {
	if c.Queue.Name == "" {
		return types.NullQueueName(), fmt.Errorf("%w: queue name is required", ErrInvalidConfig)
	}
	return types.NewQueueName(c.Queue.Name)
}

// JobID returns the job id input, the null id when unset.
func (c *Config) JobID() (types.JobID, error) {
	if c.Job.ID == "" {
		return types.NullJobID(), nil
	}
	return types.ParseJobID(c.Job.ID)
}

// CommitOptions converts the commit section.
func (c *Config) CommitOptions() (commit.Options, error) {
	var opts commit.Options
	var err error

	if c.Commit.Author != "" {
		if opts.Author, err = types.ParseEmailAddress(c.Commit.Author); err != nil {
			return commit.Options{}, err
		}
	}
	if c.Commit.SigningKey != "" {
		if opts.SigningKey, err = types.NewSigningKeyID(c.Commit.SigningKey); err != nil {
			return commit.Options{}, err
		}
	}
	opts.NoGPGSign = c.Commit.NoGPGSign
	return opts, nil
}
