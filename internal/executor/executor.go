// Package executor runs the fixed pool of worker goroutines that drain the
// job queue: pop, gate on the rate limiter, execute the HTTP request,
// report the result, record the send. Modeled on the teacher's
// internal/worker.Pool goroutine loop, generalized from "forward a request"
// to "run a job end to end" and with the hybrid forwarder's
// metrics-around-dispatch pattern supplying the active-worker gauge.
package executor

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rjpruitt16/ezworker/internal/httpclient"
	"github.com/rjpruitt16/ezworker/internal/job"
	"github.com/rjpruitt16/ezworker/internal/queue"
	"github.com/rjpruitt16/ezworker/internal/ratelimiter"
	"github.com/rjpruitt16/ezworker/pkg/logger"
)

// Reporter is the narrow interface the executor needs from the reporter
// package, kept here to avoid a hard dependency cycle and to make the
// executor independently testable with a stub.
type Reporter interface {
	Report(ctx context.Context, result job.Result)
}

// Metrics receives lifecycle observations. All methods are optional; a nil
// Metrics value is never passed, but individual fields may be no-ops.
type Metrics interface {
	ActiveDelta(delta int)
	JobProcessed()
	JobFailed()
}

// Pool is a fixed set of executor worker goroutines.
type Pool struct {
	size     int
	queue    *queue.Queue
	limiter  *ratelimiter.Limiter
	client   *httpclient.Client
	reporter Reporter
	metrics  Metrics

	wg sync.WaitGroup
}

// New builds an executor Pool of the given size.
func New(size int, q *queue.Queue, limiter *ratelimiter.Limiter, client *httpclient.Client, reporter Reporter, metrics Metrics) *Pool {
	return &Pool{size: size, queue: q, limiter: limiter, client: client, reporter: reporter, metrics: metrics}
}

// Run spawns the pool's worker goroutines and blocks until every worker has
// exited (which happens once the queue is stopped and drained).
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		item, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.runJob(ctx, item)
	}
}

func (p *Pool) runJob(ctx context.Context, item job.WorkItem) {
	if p.metrics != nil {
		p.metrics.ActiveDelta(1)
		defer p.metrics.ActiveDelta(-1)
	}

	start := time.Now()
	j := item.Job

	host, err := ratelimiter.ExtractHost(j.TargetURL)
	if err != nil {
		kind := job.ErrNoHost
		if u, perr := url.Parse(j.TargetURL); perr != nil || !u.IsAbs() {
			kind = job.ErrInvalidURL
		}
		p.report(ctx, job.NewFailure(j.ID, kind, elapsedMS(start)))
		return
	}

	p.limiter.WaitForHost(host)

	status, body, elapsed, reqErr := p.client.Request(ctx, j.Method, j.TargetURL, j.Headers(), j.Body, time.Duration(j.TimeoutMS)*time.Millisecond)
	defer p.limiter.RecordSend(host) // runs after the result is reported

	if reqErr != nil {
		kind := classifyError(reqErr)
		p.report(ctx, job.NewFailure(j.ID, kind, elapsed.Milliseconds()))
		return
	}
	p.report(ctx, job.NewSuccess(j.ID, status, body, elapsed.Milliseconds()))
}

func (p *Pool) report(ctx context.Context, result job.Result) {
	if p.metrics != nil {
		if result.Success {
			p.metrics.JobProcessed()
		} else {
			p.metrics.JobFailed()
		}
	}
	p.reporter.Report(ctx, result)
}

func classifyError(err error) job.ErrorKind {
	if tErr, ok := err.(*httpclient.Error); ok {
		return tErr.Kind
	}
	logger.Warn("executor: unclassified transport error: %v", err)
	return job.ErrRequestFailed
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
