package queue

import (
	"time"

	"github.com/ChuLiYu/git-queue/internal/jobstate"
	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Recorder observes queue activity. The metrics package provides the
// Prometheus implementation; all methods must be cheap and must not fail.
type Recorder interface {
	MessageCommitted(queue types.QueueName, kind message.Kind)
	CommandRejected(queue types.QueueName, op string, err error)
	LogReloaded(queue types.QueueName, elapsed time.Duration, stats jobstate.Stats)
}

type nopRecorder struct{}

func (nopRecorder) MessageCommitted(types.QueueName, message.Kind) {}
func (nopRecorder) CommandRejected(types.QueueName, string, error) {}
func (nopRecorder) LogReloaded(types.QueueName, time.Duration, jobstate.Stats) {}
