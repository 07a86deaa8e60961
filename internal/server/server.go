// ============================================================================
// Git Queue status server
// ============================================================================
//
// Package: internal/server
// File: server.go
// Purpose: read-only HTTP view of the queues stored in a repository.
//
// Routes:
//
//	GET /healthz         liveness, always 200
//	GET /metrics         Prometheus exposition
//	GET /queues/{name}   queue status as JSON
//
// A status request loads the queue from history. Concurrent requests for the
// same queue share one load.
//
// ============================================================================

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ChuLiYu/git-queue/internal/jobstate"
	"github.com/ChuLiYu/git-queue/internal/metrics"
	"github.com/ChuLiYu/git-queue/internal/queue"
	"github.com/ChuLiYu/git-queue/pkg/types"
)

const shutdownTimeout = 5 * time.Second

// Server serves queue status over HTTP.
type Server struct {
	storage   queue.Storage
	queueOpts []queue.Option
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
	group     singleflight.Group
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer selects the registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithQueueOptions is applied to every queue loaded for a request.
func WithQueueOptions(opts ...queue.Option) Option {
	return func(s *Server) {
		s.queueOpts = append(s.queueOpts, opts...)
	}
}

// NewServer creates a server reading from storage.
func NewServer(storage queue.Storage, opts ...Option) *Server {
	s := &Server{
		storage: storage,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	r.Get("/queues/{name}", s.handleQueueStatus)
	s.router = r

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// Handlers
// ============================================================================

// JobView is the JSON form of a queue.Job.
type JobView struct {
	ID      int    `json:"id"`
	Commit  string `json:"commit"`
	Payload string `json:"payload"`
}

// QueueStatus is the response of GET /queues/{name}.
type QueueStatus struct {
	Queue        string         `json:"queue"`
	Empty        bool           `json:"empty"`
	NextJob      *JobView       `json:"next_job,omitempty"`
	InFlightJob  *JobView       `json:"in_flight_job,omitempty"`
	Stats        jobstate.Stats `json:"stats"`
	LatestCommit string         `json:"latest_commit,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	name, err := types.NewQueueName(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// The load is shared with concurrent requests for the same queue, so it
	// must not end when this request is cancelled.
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.group.Do(name.String(), func() (interface{}, error) {
		return s.loadStatus(ctx, name)
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrStorageNotInitialized) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("queue status failed",
			zap.String("queue", name.String()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Debug("queue status served", zap.String("queue", name.String()), zap.Bool("shared", shared))
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) loadStatus(ctx context.Context, name types.QueueName) (QueueStatus, error) {
	q, err := queue.New(ctx, name, s.storage, s.queueOpts...)
	if err != nil {
		return QueueStatus{}, err
	}

	status := QueueStatus{
		Queue:       name.String(),
		Empty:       q.IsEmpty(),
		NextJob:     jobView(q.NextJob()),
		InFlightJob: jobView(q.StartedJob()),
		Stats:       q.Stats(),
	}
	if latest := q.LatestMessage(); !latest.IsNull() {
		status.LatestCommit = latest.CommitHash().String()
	}
	return status, nil
}

func jobView(job queue.Job) *JobView {
	if job.IsNull() {
		return nil
	}
	return &JobView{
		ID:      job.ID().Int(),
		Commit:  job.CommitHash().String(),
		Payload: job.Payload(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
