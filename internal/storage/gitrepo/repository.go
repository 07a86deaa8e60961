// ============================================================================
// Git storage engine
// ============================================================================
//
// Package: internal/storage/gitrepo
// File: repository.go
// Purpose: the commit log of a git repository used as the queue's
// write-ahead log.
//
// Every queue event is one empty commit on the current branch:
//
//	<subject>
//
//	<body>
//
// No files are touched; the tree of every commit equals its parent's tree.
// History is read back newest first by walking from HEAD.
//
// The repository is opened on every call so that commits appended by another
// process (or by git itself) are always observed. Appends from one
// Repository value are serialized with a mutex; concurrent writers in other
// processes are not coordinated.
//
// ============================================================================

package gitrepo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Identity used when neither the commit options nor the git config name an author.
const (
	FallbackAuthorName  = "git-queue"
	FallbackAuthorEmail = "git-queue@git-queue.local"
)

// Repository is a queue Storage backed by a git working copy.
type Repository struct {
	dir        string
	keyring    openpgp.EntityList
	passphrase []byte
	logger     *zap.Logger
	now        func() time.Time

	mu sync.Mutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithKeyring sets the keyring searched for signing keys.
func WithKeyring(keyring openpgp.EntityList) Option {
	return func(r *Repository) {
		r.keyring = keyring
	}
}

// WithPassphrase unlocks encrypted signing keys.
func WithPassphrase(passphrase string) Option {
	return func(r *Repository) {
		r.passphrase = []byte(passphrase)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New binds to dir. The directory is not touched until the first call.
func New(dir string, opts ...Option) *Repository {
	r := &Repository{
		dir:    dir,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Dir() string {
	return r.dir
}

// Init creates the repository if it does not exist yet.
func (r *Repository) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := git.PlainInit(r.dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return nil
	}
	if err != nil {
		return &RepositoryError{Dir: r.dir, Op: "init", Err: err}
	}
	r.logger.Info("repository initialized", zap.String("dir", r.dir))
	return nil
}

func (r *Repository) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(r.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, &RepositoryError{Dir: r.dir, Op: "open", Err: ErrNotInitialized}
	}
	if err != nil {
		return nil, &RepositoryError{Dir: r.dir, Op: "open", Err: err}
	}
	return repo, nil
}

// IsInitialized reports whether dir holds a git repository.
func (r *Repository) IsInitialized(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := r.open()
	if errors.Is(err, ErrNotInitialized) {
		return false, nil
	}
	return err == nil, err
}

// HasCommits reports whether the current branch has at least one commit.
func (r *Repository) HasCommits(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &RepositoryError{Dir: r.dir, Op: "head", Err: err}
	}
	return true, nil
}

// AppendCommit writes one empty commit and returns its hash.
func (r *Repository) AppendCommit(ctx context.Context, subject, body string, opts commit.Options) (types.CommitHash, error) {
	if err := ctx.Err(); err != nil {
		return types.NullCommitHash(), err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	repo, err := r.open()
	if err != nil {
		return types.NullCommitHash(), err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return types.NullCommitHash(), &RepositoryError{Dir: r.dir, Op: "worktree", Err: err}
	}

	author := r.signature(repo, opts.Author)

	var signKey *openpgp.Entity
	if opts.ShouldSign() {
		if signKey, err = r.signingEntity(opts.SigningKey); err != nil {
			return types.NullCommitHash(), err
		}
	}

	message := subject
	if body != "" {
		message += "\n\n" + body
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            author,
		Committer:         author,
		SignKey:           signKey,
	})
	if err != nil {
		return types.NullCommitHash(), &RepositoryError{Dir: r.dir, Op: "commit", Err: err}
	}

	committed, err := types.NewCommitHash(hash.String())
	if err != nil {
		return types.NullCommitHash(), err
	}

	r.logger.Debug("commit appended",
		zap.String("dir", r.dir),
		zap.String("commit", committed.String()),
		zap.String("subject", subject),
		zap.String("options", opts.String()),
	)
	return committed, nil
}

// ReadHistory returns the commits reachable from HEAD, newest first. An
// unborn branch yields an empty history.
func (r *Repository) ReadHistory(ctx context.Context) ([]commit.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := r.open()
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &RepositoryError{Dir: r.dir, Op: "head", Err: err}
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, &RepositoryError{Dir: r.dir, Op: "log", Err: err}
	}
	defer iter.Close()

	var history []commit.Info
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		hash, err := types.NewCommitHash(c.Hash.String())
		if err != nil {
			return err
		}
		subject, body := commit.SplitMessage(c.Message)
		history = append(history, commit.Info{
			Hash:        hash,
			Date:        c.Author.When,
			Subject:     subject,
			Body:        body,
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
		})
		return nil
	})
	if err != nil {
		return nil, &RepositoryError{Dir: r.dir, Op: "log", Err: err}
	}

	r.logger.Debug("history read", zap.String("dir", r.dir), zap.Int("commits", len(history)))
	return history, nil
}

// signature resolves the commit author: explicit option, then the user
// section of the git config, then the fallback identity.
func (r *Repository) signature(repo *git.Repository, author types.EmailAddress) *object.Signature {
	name, email := author.Name(), author.Address()

	if author.IsNull() {
		if cfg, err := repo.ConfigScoped(config.GlobalScope); err == nil {
			name, email = cfg.User.Name, cfg.User.Email
		}
	}

	if strings.TrimSpace(email) == "" {
		name, email = FallbackAuthorName, FallbackAuthorEmail
	}
	if strings.TrimSpace(name) == "" {
		name = FallbackAuthorName
	}

	return &object.Signature{Name: name, Email: email, When: r.now()}
}
