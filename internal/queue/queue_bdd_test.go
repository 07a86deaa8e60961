package queue

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ChuLiYu/git-queue/internal/commit"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

var _ = Describe("Queue state machine", func() {
	var (
		ctx     context.Context
		storage *memoryStorage
		q       *Queue
	)

	open := func(name string) *Queue {
		queue, err := New(ctx, types.MustQueueName(name), storage)
		Expect(err).NotTo(HaveOccurred())
		return queue
	}

	create := func(payload string) Job {
		job, err := q.CreateJob(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		return job
	}

	start := func(id int) types.CommitHash {
		hash, err := q.MarkJobAsStarted(ctx, types.MustJobID(id), "")
		Expect(err).NotTo(HaveOccurred())
		return hash
	}

	finish := func(id int) types.CommitHash {
		hash, err := q.MarkJobAsFinished(ctx, types.MustJobID(id), "")
		Expect(err).NotTo(HaveOccurred())
		return hash
	}

	BeforeEach(func() {
		ctx = context.Background()
		storage = newMemoryStorage()
		q = open("queue-name")
	})

	Describe("Creating jobs", func() {
		It("should hand back the created job as the next job", func() {
			job := create("test")

			Expect(q.NextJob().Payload()).To(Equal("test"))
			Expect(q.NextJob().CommitHash()).To(Equal(job.CommitHash()))
		})

		It("should issue consecutive ids regardless of processing", func() {
			Expect(create("a").ID().Int()).To(Equal(1))
			start(1)
			Expect(create("b").ID().Int()).To(Equal(2))
			finish(1)
			Expect(create("c").ID().Int()).To(Equal(3))
		})

		It("should not be blocked by a job in flight", func() {
			create("a")
			start(1)

			_, err := q.CreateJob(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Processing jobs", func() {
		Context("with a full lifecycle", func() {
			It("should leave the queue empty", func() {
				create("test")
				start(1)
				finish(1)

				Expect(q.IsEmpty()).To(BeTrue())
				Expect(q.NextJob().IsNull()).To(BeTrue())
			})
		})

		Context("with jobs created ahead of processing", func() {
			It("should move to the job after the last finished one", func() {
				for i := 0; i < 4; i++ {
					create("payload")
				}
				start(1)
				finish(1)

				Expect(q.NextJob().ID()).To(Equal(types.MustJobID(2)))
			})
		})

		Context("when a job is in flight", func() {
			BeforeEach(func() {
				create("a")
				create("b")
				start(1)
			})

			It("should reject starting another job", func() {
				_, err := q.MarkJobAsStarted(ctx, types.MustJobID(2), "")
				Expect(err).To(MatchError(ErrPendingJobsLimitReached))
			})

			It("should accept starting the next job once finished", func() {
				finish(1)
				_, err := q.MarkJobAsStarted(ctx, types.MustJobID(2), "")
				Expect(err).NotTo(HaveOccurred())
			})

			It("should report the job in flight", func() {
				Expect(q.StartedJob().ID()).To(Equal(types.MustJobID(1)))
			})
		})

		Context("on an empty queue", func() {
			It("should refuse to start a job and report the null hash", func() {
				_, err := q.MarkJobAsStarted(ctx, types.MustJobID(1), "")
				Expect(err).To(MatchError(ErrMissingNewJobMessage))

				var serr *StateError
				Expect(err).To(BeAssignableToTypeOf(serr))
				Expect(err.(*StateError).Commit.String()).To(Equal(types.NoCommitHash))
			})

			It("should refuse to finish a job", func() {
				_, err := q.MarkJobAsFinished(ctx, types.MustJobID(1), "")
				Expect(err).To(MatchError(ErrMissingJobStartedMessage))
				Expect(storage.appends).To(BeZero())
			})
		})
	})

	Describe("Sharing one storage location", func() {
		It("should keep queues isolated", func() {
			a := open("queue-a")
			b := open("queue-b")

			_, err := a.CreateJob(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			_, err = b.CreateJob(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Reload(ctx)).To(Succeed())

			Expect(a.NextJob().Payload()).To(Equal("a"))
			Expect(b.NextJob().Payload()).To(Equal("b"))
		})
	})

	Describe("Re-deriving state", func() {
		It("should give the same answers from history alone", func() {
			create("a")
			create("b")
			start(1)

			fresh := open("queue-name")
			Expect(fresh.Log().Equal(q.Log())).To(BeTrue())
			Expect(fresh.NextJob()).To(Equal(q.NextJob()))
			Expect(fresh.StartedJob()).To(Equal(q.StartedJob()))
		})
	})

	Describe("Malformed history", func() {
		It("should reject a queue commit without a body namespace", func() {
			storage.appendRaw("📝🈺: queue-name job.id.1", `{"version":1,"metadata":{"job_number":1},"payload":""}`)

			_, err := New(ctx, types.MustQueueName("queue-name"), storage)
			Expect(err).To(MatchError(commit.ErrInvalidCommitBody))
		})
	})
})
