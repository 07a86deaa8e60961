package queue

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var errStorageUnavailable = errors.New("storage unavailable")

// memoryStorage is an in-memory Storage with a linear history.
type memoryStorage struct {
	uninitialized bool
	failAppend    bool
	failRead      bool

	commits []commit.Info // oldest first
	appends int
	options []commit.Options
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{}
}

func (s *memoryStorage) IsInitialized(context.Context) (bool, error) {
	return !s.uninitialized, nil
}

func (s *memoryStorage) HasCommits(context.Context) (bool, error) {
	return len(s.commits) > 0, nil
}

func (s *memoryStorage) AppendCommit(_ context.Context, subject, body string, opts commit.Options) (types.CommitHash, error) {
	if s.failAppend {
		return types.NullCommitHash(), errStorageUnavailable
	}
	s.appends++
	s.options = append(s.options, opts)

	sum := sha1.Sum([]byte(fmt.Sprintf("%d\n%s\n%s", len(s.commits), subject, body)))
	hash := types.MustCommitHash(hex.EncodeToString(sum[:]))
	s.commits = append(s.commits, commit.Info{
		Hash:        hash,
		Date:        time.Date(2022, 3, 1, 0, len(s.commits), 0, 0, time.UTC),
		Subject:     subject,
		Body:        body,
		AuthorName:  "A committer",
		AuthorEmail: "committer@example.com",
	})
	return hash, nil
}

// appendRaw writes an arbitrary commit, bypassing the queue.
func (s *memoryStorage) appendRaw(subject, body string) types.CommitHash {
	hash, err := s.AppendCommit(context.Background(), subject, body, commit.Options{})
	if err != nil {
		panic(err)
	}
	return hash
}

func (s *memoryStorage) ReadHistory(context.Context) ([]commit.Info, error) {
	if s.failRead {
		return nil, errStorageUnavailable
	}
	out := make([]commit.Info, len(s.commits))
	for i, c := range s.commits {
		out[len(s.commits)-1-i] = c
	}
	return out, nil
}
