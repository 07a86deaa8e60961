package message

import (
	"fmt"
	"time"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var baseTime = time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)

// hashFor returns a deterministic 40-char hash for fixture number n.
func hashFor(n int) types.CommitHash {
	return types.MustCommitHash(fmt.Sprintf("%040x", n))
}

// infoFor builds the commit a queue would have written for m.
func infoFor(n int, m commit.Message) commit.Info {
	return commit.Info{
		Hash:        hashFor(n),
		Date:        baseTime.Add(time.Duration(n) * time.Minute),
		Subject:     m.Subject().String(),
		Body:        m.Body().Text(),
		AuthorName:  "A committer",
		AuthorEmail: "committer@example.com",
	}
}

func newJob(n int, queue string, id int) commit.Info {
	return infoFor(n, commit.NewJobMessage(types.MustQueueName(queue), types.MustJobID(id), "payload"))
}

func started(n int, queue string, id, ref int) commit.Info {
	return infoFor(n, commit.JobStartedMessage(types.MustQueueName(queue), types.MustJobID(id), hashFor(ref), "started"))
}

func finished(n int, queue string, id, ref, origin int) commit.Info {
	return infoFor(n, commit.JobFinishedMessage(types.MustQueueName(queue), types.MustJobID(id), hashFor(ref), hashFor(origin), "finished"))
}

// newestFirst reverses fixtures written in chronological order.
func newestFirst(infos ...commit.Info) []commit.Info {
	out := make([]commit.Info, len(infos))
	for i, info := range infos {
		out[len(infos)-1-i] = info
	}
	return out
}
