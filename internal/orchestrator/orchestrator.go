// Package orchestrator wires the poller, job queue, rate limiter, executor
// pool, reporter, and observability server together and drives the
// Init->Running->Stopping->Stopped lifecycle. Modeled on the teacher's
// app.App.Run(): signal-driven shutdown, a readiness flag flipped around
// the run, and a bounded shutdown of the embedded HTTP server while the
// executors drain the queue.
// Goroutine supervision uses golang.org/x/sync/errgroup, a dependency the
// teacher's go.mod carried but never put to work.
package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/rjpruitt16/ezworker/internal/config"
	"github.com/rjpruitt16/ezworker/internal/executor"
	"github.com/rjpruitt16/ezworker/internal/httpclient"
	"github.com/rjpruitt16/ezworker/internal/metrics"
	"github.com/rjpruitt16/ezworker/internal/observability"
	"github.com/rjpruitt16/ezworker/internal/poller"
	"github.com/rjpruitt16/ezworker/internal/queue"
	"github.com/rjpruitt16/ezworker/internal/ratelimiter"
	"github.com/rjpruitt16/ezworker/internal/reporter"
	"github.com/rjpruitt16/ezworker/pkg/logger"
)

// State is one of the four states of the orchestrator lifecycle.
type State int

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateStopped
)

// promMetrics adapts the package-level Prometheus collectors to the
// executor.Metrics interface.
type promMetrics struct{}

func (promMetrics) ActiveDelta(delta int) { metrics.ActiveExecutorsGauge.Add(float64(delta)) }
func (promMetrics) JobProcessed()         { metrics.JobsProcessedCounter.Inc() }
func (promMetrics) JobFailed()            { metrics.JobsFailedCounter.Inc() }

// Orchestrator owns every component instance and the single stop flag.
type Orchestrator struct {
	cfg *config.Config

	queue     *queue.Queue
	limiter   *ratelimiter.Limiter
	client    *httpclient.Client
	poller    *poller.Poller
	executors *executor.Pool
	reporter  *reporter.Reporter
	obsServer *observability.Server
	readiness *atomic.Bool

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds an Orchestrator from configuration, constructing and wiring
// every component but starting none of them.
func New(cfg *config.Config) *Orchestrator {
	q := queue.New(cfg.JobQueueSize)
	limiter := ratelimiter.New(cfg.RateLimitPerSec)
	client := httpclient.New(0)
	rep := reporter.New(cfg.ClockworkURL, 10*time.Second)
	readiness := atomic.NewBool(false)

	pollerCfg := poller.Config{
		BaseURL:          cfg.ClockworkURL,
		WorkerID:         cfg.WorkerID,
		Region:           cfg.Region,
		BatchSize:        cfg.JobsPerPull,
		PollIntervalSecs: cfg.PollIntervalSecs,
		MaxJitterMS:      cfg.MaxJitterMS,
		ProductionEnv:    cfg.ProductionEnv,
	}
	p := poller.New(pollerCfg, client, q)
	p.OnBatch(func(n int) {
		metrics.RecordPollBatch(n)
		metrics.QueueDepthGauge.Set(float64(q.Size()))
		metrics.RateLimiterWaitersGauge.Set(float64(limiter.Waiters()))
	})

	pool := executor.New(cfg.ExecutorThreads, q, limiter, client, rep, promMetrics{})

	return &Orchestrator{
		cfg:       cfg,
		queue:     q,
		limiter:   limiter,
		client:    client,
		poller:    p,
		executors: pool,
		reporter:  rep,
		obsServer: observability.New(cfg.ObservabilityPort, readiness),
		readiness: readiness,
		stopCh:    make(chan struct{}),
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Run spawns the poller, the executor pool, and the observability server
// under a supervising errgroup, then blocks until a stop signal arrives
// (either externally via Stop, or SIGINT/SIGTERM).
func (o *Orchestrator) Run(ctx context.Context) error {
	o.state.Store(int32(StateRunning))
	o.limiter.StartPruning()

	// The poller and executor pool run on an unbounded background context:
	// per spec.md §5, shutdown must let in-flight requests complete rather
	// than force-abort them, so only their own Stop()/queue.Stop() signals
	// end their loops. The observability server gets its own cancelable
	// context since it has no equivalent drain concept.
	obsCtx, cancelObs := context.WithCancel(ctx)
	defer cancelObs()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.poller.Run(context.Background())
		return nil
	})
	g.Go(func() error {
		o.executors.Run(context.Background())
		return nil
	})
	g.Go(func() error {
		return o.obsServer.Run(obsCtx)
	})

	o.readiness.Store(true)
	logger.Info("orchestrator running: executor_threads=%d queue_size=%d", o.cfg.ExecutorThreads, o.cfg.JobQueueSize)

	select {
	case sig := <-sigCh:
		logger.Info("received signal %v, beginning shutdown", sig)
	case <-ctx.Done():
	case <-o.stopCh:
	}

	o.shutdown()
	cancelObs()
	err := g.Wait()
	o.state.Store(int32(StateStopped))
	logger.Info("orchestrator stopped")
	return err
}

// Stop triggers the same shutdown sequence Run's signal handler does, for
// programmatic (test-driven) callers. Safe to call more than once and
// safe to call before Run has observed it.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
}

func (o *Orchestrator) shutdown() {
	o.state.Store(int32(StateStopping))
	o.readiness.Store(false)

	logger.Info("stopping poller")
	o.poller.Stop()

	logger.Info("stopping queue")
	o.queue.Stop()

	o.limiter.StopPruning()
}
