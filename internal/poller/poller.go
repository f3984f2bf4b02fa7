// Package poller continuously fetches pending jobs from Clockwork and hands
// them to the job queue, sleeping between pulls on a wall-clock-aligned,
// jittered cadence. Modeled on the tick-and-check scheduler idiom used by
// the retrieved Pulseboard poller, adapted to align sleeps to absolute
// second boundaries rather than a fixed ticker period.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/rjpruitt16/ezworker/internal/httpclient"
	"github.com/rjpruitt16/ezworker/internal/job"
	"github.com/rjpruitt16/ezworker/internal/queue"
	"github.com/rjpruitt16/ezworker/pkg/logger"
)

const minSleep = 100 * time.Millisecond

// defaultJobTimeoutMS is applied to every job pulled from the coordinator:
// timeout_ms is not transported over the wire (spec §6).
const defaultJobTimeoutMS = 30000

// Config holds the poller's static state (spec.md §3 "Poller state").
type Config struct {
	BaseURL          string
	WorkerID         string
	Region           string
	BatchSize        int
	PollIntervalSecs int
	MaxJitterMS      int
	ProductionEnv    bool // true suppresses the dev-only https->http downgrade
}

// envelope is the coordinator's poll response body.
type envelope struct {
	Success bool        `json:"success"`
	Job     *jobPayload `json:"job"`
}

type jobPayload struct {
	ID        string          `json:"id"`
	TargetURL string          `json:"target_url"`
	Method    string          `json:"method"`
	Body      json.RawMessage `json:"body"`
}

// Poller pulls jobs from the coordinator and pushes them onto a Queue.
type Poller struct {
	cfg    Config
	client *httpclient.Client
	queue  *queue.Queue
	stop   atomic.Bool

	onBatch func(n int) // test hook / metrics callback, may be nil
}

// New builds a Poller over the given HTTP client and destination queue.
func New(cfg Config, client *httpclient.Client, q *queue.Queue) *Poller {
	return &Poller{cfg: cfg, client: client, queue: q}
}

// OnBatch registers a callback invoked after each poll with the number of
// jobs enqueued (0 for an empty batch). Used by the orchestrator to drive
// the ezworker_poll_batches_total counter.
func (p *Poller) OnBatch(fn func(n int)) {
	p.onBatch = fn
}

// Run loops until Stop is called, pulling a batch and sleeping to the next
// aligned poll instant each iteration.
func (p *Poller) Run(ctx context.Context) {
	for !p.stop.Load() {
		n := p.pollOnce(ctx)
		if p.onBatch != nil {
			p.onBatch(n)
		}
		if p.stop.Load() {
			return
		}
		p.sleepToNextInstant()
	}
}

// Stop signals the poller to exit its next sleep slice and stop pushing.
func (p *Poller) Stop() {
	p.stop.Store(true)
}

func (p *Poller) pollOnce(ctx context.Context) int {
	pullURL := p.buildURL()
	status, body, _, err := p.client.Request(ctx, job.MethodGET, pullURL, nil, nil, 10*time.Second)
	if err != nil {
		logger.Warn("poller: pull failed: %v", err)
		return 0
	}

	switch {
	case status == http.StatusNoContent:
		logger.Debug("poller: empty batch (204)")
		return 0
	case status == http.StatusOK:
		return p.handleBatch(body)
	default:
		logger.Warn("poller: unexpected status %d from coordinator", status)
		return 0
	}
}

func (p *Poller) handleBatch(body []byte) int {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.Warn("poller: malformed response body: %v", err)
		return 0
	}
	if !env.Success || env.Job == nil {
		return 0
	}

	j, err := p.toJob(*env.Job)
	if err != nil {
		logger.Warn("poller: rejecting job from coordinator: %v", err)
		return 0
	}

	item := job.WorkItem{ID: j.ID, Job: j}
	if err := p.queue.Push(item); err != nil {
		logger.Warn("poller: failed to enqueue job %s: %v", j.ID, err)
		return 0
	}
	return 1
}

func (p *Poller) toJob(payload jobPayload) (job.Job, error) {
	method, err := job.ParseMethod(payload.Method)
	if err != nil {
		return job.Job{}, err
	}

	targetURL := payload.TargetURL
	if !p.cfg.ProductionEnv && strings.HasPrefix(targetURL, "https://") {
		logger.Warn("poller: downgrading https target to http for job %s in non-production environment", payload.ID)
		targetURL = "http://" + strings.TrimPrefix(targetURL, "https://")
	}

	var body []byte
	if len(payload.Body) > 0 && string(payload.Body) != "null" {
		var s string
		if err := json.Unmarshal(payload.Body, &s); err == nil {
			body = []byte(s)
		} else {
			body = []byte(payload.Body)
		}
	}

	j := job.Job{
		ID:        payload.ID,
		TargetURL: targetURL,
		Method:    method,
		Body:      body,
		TimeoutMS: defaultJobTimeoutMS,
	}
	if err := j.Validate(); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (p *Poller) buildURL() string {
	v := url.Values{}
	v.Set("worker_id", p.cfg.WorkerID)
	v.Set("region", p.cfg.Region)
	v.Set("limit", strconv.Itoa(p.cfg.BatchSize))
	return fmt.Sprintf("%s/worker/jobs?%s", strings.TrimRight(p.cfg.BaseURL, "/"), v.Encode())
}

// sleepToNextInstant sleeps until the next wall-clock-aligned poll instant:
// next = (floor(now/1000) + poll_interval_seconds) * 1000, plus uniform
// jitter in [0, max_jitter_ms), floored at 100ms.
func (p *Poller) sleepToNextInstant() {
	now := time.Now()
	nowMS := now.UnixMilli()
	nextMS := ((nowMS / 1000) + int64(p.cfg.PollIntervalSecs)) * 1000
	if p.cfg.MaxJitterMS > 0 {
		nextMS += int64(rand.Intn(p.cfg.MaxJitterMS))
	}
	sleep := time.Duration(nextMS-nowMS) * time.Millisecond
	if sleep < minSleep {
		sleep = minSleep
	}
	time.Sleep(sleep)
}
