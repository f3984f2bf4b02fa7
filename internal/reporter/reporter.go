// Package reporter POSTs job results back to Clockwork. It owns no job
// state and never retries: a network failure is logged and dropped, on the
// assumption that the coordinator's result endpoint is idempotent.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rjpruitt16/ezworker/internal/job"
	"github.com/rjpruitt16/ezworker/pkg/logger"
)

// payload is the JSON envelope POSTed to the coordinator's result endpoint.
type payload struct {
	JobID      string  `json:"id"`
	Success    bool    `json:"success"`
	StatusCode *int    `json:"status_code"`
	Body       string  `json:"response_body"`
	ErrorKind  *string `json:"error_kind"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}

// Reporter posts JobResults to the coordinator.
type Reporter struct {
	baseURL string
	http    *http.Client
}

// New builds a Reporter against the coordinator's base URL, using an
// independent *http.Client from the job-execution httpclient primitive:
// the report call is a fixed-shape internal request, not an arbitrary
// outbound job.
func New(baseURL string, timeout time.Duration) *Reporter {
	return &Reporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Report serializes result and POSTs it to
// {base}/worker/jobs/{job_id}/result. Failures are logged and swallowed.
func (r *Reporter) Report(ctx context.Context, result job.Result) {
	p := payload{
		JobID:      result.JobID,
		Success:    result.Success,
		StatusCode: result.StatusCode,
		Body:       string(result.Body),
		ElapsedMS:  result.ElapsedMS,
	}
	if result.ErrorKind != nil {
		kind := string(*result.ErrorKind)
		p.ErrorKind = &kind
	}

	buf, err := json.Marshal(p)
	if err != nil {
		logger.Error("reporter: failed to marshal result for job %s: %v", result.JobID, err)
		return
	}

	url := fmt.Sprintf("%s/worker/jobs/%s/result", r.baseURL, result.JobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		logger.Error("reporter: failed to build request for job %s: %v", result.JobID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		logger.Warn("reporter: failed to report job %s: %v", result.JobID, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		logger.Warn("reporter: coordinator rejected result for job %s: status %d", result.JobID, resp.StatusCode)
	}
}
