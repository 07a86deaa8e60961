package queue

import (
	"context"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Storage is the append-only commit history a queue lives in.
//
// Implementations must return history newest first and must make an appended
// commit visible to the next ReadHistory call. HasCommits reports false for a
// freshly initialized location; the queue treats that as an empty log rather
// than an error.
type Storage interface {
	IsInitialized(ctx context.Context) (bool, error)
	HasCommits(ctx context.Context) (bool, error)
	AppendCommit(ctx context.Context, subject, body string, opts commit.Options) (types.CommitHash, error)
	ReadHistory(ctx context.Context) ([]commit.Info, error)
}
