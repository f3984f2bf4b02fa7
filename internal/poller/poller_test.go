package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rjpruitt16/ezworker/internal/httpclient"
	"github.com/rjpruitt16/ezworker/internal/queue"
)

func newTestPoller(t *testing.T, handler http.HandlerFunc) (*Poller, *queue.Queue, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	q := queue.New(10)
	cfg := Config{
		BaseURL:          srv.URL,
		WorkerID:         "w1",
		Region:           "dev",
		BatchSize:        1,
		PollIntervalSecs: 1,
		MaxJitterMS:      0,
	}
	p := New(cfg, httpclient.New(0), q)
	return p, q, srv.Close
}

func TestPollOnce_204_NoJobPushed(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeSrv()

	n := p.pollOnce(context.Background())
	if n != 0 {
		t.Errorf("expected 0 jobs, got %d", n)
	}
	if q.Size() != 0 {
		t.Errorf("expected empty queue, got size %d", q.Size())
	}
}

func TestPollOnce_SuccessEnqueuesJob(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"job":{"id":"j1","target_url":"http://t.example/ok","method":"GET","body":null}}`))
	})
	defer closeSrv()

	n := p.pollOnce(context.Background())
	if n != 1 {
		t.Fatalf("expected 1 job enqueued, got %d", n)
	}
	item, ok := q.Pop()
	if !ok || item.ID != "j1" {
		t.Errorf("expected job j1, got %+v ok=%v", item, ok)
	}
	if item.Job.TimeoutMS != defaultJobTimeoutMS {
		t.Errorf("expected default timeout %d, got %d", defaultJobTimeoutMS, item.Job.TimeoutMS)
	}
}

func TestPollOnce_SuccessFalseNoJobPushed(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	defer closeSrv()

	n := p.pollOnce(context.Background())
	if n != 0 || q.Size() != 0 {
		t.Errorf("expected no job pushed, got n=%d size=%d", n, q.Size())
	}
}

func TestPollOnce_UnexpectedStatusEmptyBatch(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeSrv()

	n := p.pollOnce(context.Background())
	if n != 0 || q.Size() != 0 {
		t.Errorf("expected empty batch on 500, got n=%d size=%d", n, q.Size())
	}
}

func TestPollOnce_BodyAsStringAccepted(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"job":{"id":"j2","target_url":"http://t.example/p","method":"POST","body":"payload"}}`))
	})
	defer closeSrv()

	n := p.pollOnce(context.Background())
	if n != 1 {
		t.Fatalf("expected 1 job, got %d", n)
	}
	item, _ := q.Pop()
	if string(item.Job.Body) != "payload" {
		t.Errorf("expected body 'payload', got %q", item.Job.Body)
	}
}

func TestPollOnce_MalformedJSONEmptyBatch(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	defer closeSrv()

	n := p.pollOnce(context.Background())
	if n != 0 || q.Size() != 0 {
		t.Errorf("expected empty batch on malformed json, got n=%d size=%d", n, q.Size())
	}
}

func TestDowngradesHTTPSInNonProduction(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"job":{"id":"j3","target_url":"https://t.example/secure","method":"GET","body":null}}`))
	})
	defer closeSrv()
	p.cfg.ProductionEnv = false

	_ = p.pollOnce(context.Background())
	item, ok := q.Pop()
	if !ok {
		t.Fatal("expected job pushed")
	}
	if item.Job.TargetURL != "http://t.example/secure" {
		t.Errorf("expected downgraded http URL, got %q", item.Job.TargetURL)
	}
}

func TestKeepsHTTPSInProduction(t *testing.T) {
	p, q, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"job":{"id":"j4","target_url":"https://t.example/secure","method":"GET","body":null}}`))
	})
	defer closeSrv()
	p.cfg.ProductionEnv = true

	_ = p.pollOnce(context.Background())
	item, ok := q.Pop()
	if !ok {
		t.Fatal("expected job pushed")
	}
	if item.Job.TargetURL != "https://t.example/secure" {
		t.Errorf("expected https URL preserved in production, got %q", item.Job.TargetURL)
	}
}

func TestStop_ExitsRunLoop(t *testing.T) {
	p, _, closeSrv := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeSrv()
	p.cfg.PollIntervalSecs = 0
	p.cfg.MaxJitterMS = 0

	var batches int32
	p.OnBatch(func(n int) { atomic.AddInt32(&batches, 1) })

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop in time")
	}
	if atomic.LoadInt32(&batches) == 0 {
		t.Error("expected at least one poll batch before stop")
	}
}
