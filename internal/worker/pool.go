// Package worker is the job-queue layer wrapping the ingestion orchestrator:
// a bounded pool with at-least-once execution, a fixed retry budget, and
// fixed backoff between attempts. Dedup lives in the ledger, not here; every
// attempt goes through the orchestrator's own gate.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/mfarrag/ragline/internal/models"
	"github.com/mfarrag/ragline/internal/service"
)

const (
	// DefaultMaxRetries is how many times a failed run is re-attempted.
	DefaultMaxRetries = 3
	// DefaultBackoff is the fixed delay between attempts.
	DefaultBackoff = 60 * time.Second
)

// Orchestrator is the slice of the ingestion service the pool dispatches to.
type Orchestrator interface {
	ProcessProjectFiles(ctx context.Context, req service.ProcessRequest) (*models.IngestionOutcome, error)
	IndexProject(ctx context.Context, projectID int64, doReset bool, jobID string) (int, error)
}

// Pool runs ingestion jobs on a bounded ants pool.
type Pool struct {
	orchestrator Orchestrator
	pool         *ants.Pool
	maxRetries   int
	backoff      time.Duration
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithRetries sets the retry budget and backoff between attempts.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(p *Pool) {
		if maxRetries >= 0 {
			p.maxRetries = maxRetries
		}
		p.backoff = backoff
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool creates a worker pool with the given concurrency. Size <= 0 uses
// half the CPUs, minimum 1.
func NewPool(orchestrator Orchestrator, size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}

	antsPool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		orchestrator: orchestrator,
		pool:         antsPool,
		maxRetries:   DefaultMaxRetries,
		backoff:      DefaultBackoff,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SubmitProcess queues an ingestion run and returns its job ID immediately.
// The request's JobID is assigned here; callers must not set it.
func (p *Pool) SubmitProcess(ctx context.Context, req service.ProcessRequest) (string, error) {
	jobID := uuid.NewString()
	req.JobID = jobID

	err := p.trackedSubmit(func() {
		p.runWithRetries(ctx, jobID, func(c context.Context) error {
			outcome, err := p.orchestrator.ProcessProjectFiles(c, req)
			if outcome != nil {
				p.logger.Info("ingestion job finished",
					"job_id", jobID, "project", req.ProjectID, "signal", outcome.Signal,
					"files", outcome.ProcessedFiles, "chunks", outcome.InsertedChunks)
			}
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// SubmitIndex queues a vector-indexing run and returns its job ID.
func (p *Pool) SubmitIndex(ctx context.Context, projectID int64, doReset bool) (string, error) {
	jobID := uuid.NewString()

	err := p.trackedSubmit(func() {
		p.runWithRetries(ctx, jobID, func(c context.Context) error {
			total, err := p.orchestrator.IndexProject(c, projectID, doReset, jobID)
			if err == nil {
				p.logger.Info("indexing job finished", "job_id", jobID, "project", projectID, "chunks", total)
			}
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

func (p *Pool) trackedSubmit(task func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		task()
	})
	if err != nil {
		p.wg.Done()
	}
	return err
}

// runWithRetries executes the attempt function up to 1 + maxRetries times
// with fixed backoff. Dedup outcomes and input errors never retry: an
// in-flight duplicate resolves itself, and bad input stays bad.
func (p *Pool) runWithRetries(ctx context.Context, jobID string, attempt func(context.Context) error) {
	for try := 0; ; try++ {
		err := attempt(ctx)
		if err == nil {
			return
		}
		if !retryable(err) {
			p.logger.Warn("job failed without retry", "job_id", jobID, "attempt", try+1, "error", err)
			return
		}
		if try >= p.maxRetries {
			p.logger.Error("job failed after exhausting retries", "job_id", jobID, "attempts", try+1, "error", err)
			return
		}

		p.logger.Warn("job attempt failed, backing off",
			"job_id", jobID, "attempt", try+1, "backoff", p.backoff, "error", err)
		select {
		case <-ctx.Done():
			p.logger.Warn("job abandoned, context cancelled", "job_id", jobID, "error", ctx.Err())
			return
		case <-time.After(p.backoff):
		}
	}
}

func retryable(err error) bool {
	return !errors.Is(err, service.ErrInFlight) &&
		!errors.Is(err, service.ErrValidation) &&
		!errors.Is(err, service.ErrNoAssets) &&
		!errors.Is(err, service.ErrAssetNotFound)
}

// Wait blocks until all submitted jobs have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Release waits for in-flight jobs and shuts the pool down.
func (p *Pool) Release() {
	p.wg.Wait()
	p.pool.Release()
}
