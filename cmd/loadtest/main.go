// loadtest hammers a target URL through the same internal/httpclient and
// internal/ratelimiter primitives the worker uses in production, reporting
// latency percentiles and status/error breakdowns. Adapted from the
// teacher's standalone loadtest.go CLI, now exercising EZworker's own HTTP
// and rate-limiting packages instead of a bespoke transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rjpruitt16/ezworker/internal/httpclient"
	"github.com/rjpruitt16/ezworker/internal/job"
	"github.com/rjpruitt16/ezworker/internal/ratelimiter"
)

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }
func (h *headerFlags) Set(value string) error {
	*h = append(*h, value)
	return nil
}

type result struct {
	statusCode       int
	latency          time.Duration
	err              error
	errorBodySnippet string
}

func main() {
	var (
		targetURL     string
		method        string
		requests      int
		concurrency   int
		timeoutSec    int
		payloadFile   string
		payloadString string
		ratePerSecond float64
	)
	flag.StringVar(&targetURL, "url", "http://localhost:9090/healthz", "Target URL")
	flag.StringVar(&method, "method", "GET", "HTTP method (GET|POST|PUT|DELETE|PATCH)")
	flag.IntVar(&requests, "requests", 1000, "Total number of requests to send")
	flag.IntVar(&concurrency, "concurrency", 50, "Number of concurrent workers")
	flag.IntVar(&timeoutSec, "timeout", 30, "Per-request timeout seconds")
	flag.StringVar(&payloadFile, "payload-file", "", "Payload file path (for POST/PUT)")
	flag.StringVar(&payloadString, "payload", "", "Inline payload string (for POST/PUT)")
	flag.Float64Var(&ratePerSecond, "rate-limit", 0, "Per-host requests/second (0 = use worker's 1s default floor)")
	flag.Parse()

	if requests <= 0 || concurrency <= 0 {
		fmt.Println("requests and concurrency must be > 0")
		os.Exit(1)
	}
	if concurrency > requests {
		concurrency = requests
	}

	m, err := job.ParseMethod(method)
	if err != nil {
		fmt.Println("invalid method:", err)
		os.Exit(1)
	}

	var payload []byte
	if payloadFile != "" {
		payload, err = os.ReadFile(payloadFile)
		if err != nil {
			fmt.Println("read payload file error:", err)
			os.Exit(1)
		}
	} else if payloadString != "" {
		payload = []byte(payloadString)
	}

	client := httpclient.New(concurrency)
	limiter := ratelimiter.New(ratePerSecond)

	host, err := ratelimiter.ExtractHost(targetURL)
	if err != nil {
		fmt.Println("invalid target URL:", err)
		os.Exit(1)
	}

	jobs := make(chan int, requests)
	results := make(chan result, requests)
	ctx := context.Background()

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for range jobs {
			limiter.WaitForHost(host)
			status, body, latency, err := client.Request(ctx, m, targetURL, job.Job{Method: m, Body: payload}.Headers(), payload, time.Duration(timeoutSec)*time.Second)
			limiter.RecordSend(host)

			if err != nil {
				results <- result{latency: latency, err: err}
				continue
			}
			var snippet string
			if status < 200 || status >= 300 {
				snippet = strings.TrimSpace(string(limitBytes(body, 512)))
			}
			results <- result{statusCode: status, latency: latency, errorBodySnippet: snippet}
		}
	}

	testStart := time.Now()
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker()
	}
	for i := 0; i < requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	totalElapsed := time.Since(testStart)
	close(results)

	report(targetURL, method, requests, concurrency, totalElapsed, results)
}

func limitBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func report(targetURL, method string, requests, concurrency int, totalElapsed time.Duration, results chan result) {
	var (
		latencies      []time.Duration
		successCount   int
		errorCount     int
		statusCounters = make(map[int]int)
		errorKinds     = make(map[string]int)
	)

	for r := range results {
		latencies = append(latencies, r.latency)
		if r.err != nil {
			errorCount++
			errorKinds[r.err.Error()]++
			continue
		}
		statusCounters[r.statusCode]++
		if r.statusCode >= 200 && r.statusCode < 400 {
			successCount++
		} else {
			errorCount++
			key := fmt.Sprintf("HTTP %d", r.statusCode)
			if r.errorBodySnippet != "" {
				key = fmt.Sprintf("%s: %s", key, r.errorBodySnippet)
			}
			errorKinds[key]++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	percentile := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(p*float64(len(latencies))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	var avg time.Duration
	for _, d := range latencies {
		avg += d
	}
	if len(latencies) > 0 {
		avg /= time.Duration(len(latencies))
	}

	fmt.Println("=== Load Test Summary ===")
	fmt.Printf("URL:            %s\n", targetURL)
	fmt.Printf("Method:         %s\n", method)
	fmt.Printf("Requests:       %d\n", requests)
	fmt.Printf("Concurrency:    %d\n", concurrency)
	fmt.Printf("Success:        %d\n", successCount)
	fmt.Printf("Errors:         %d\n", errorCount)
	fmt.Printf("Total Elapsed:  %v\n", totalElapsed)
	fmt.Printf("Status Counts:  %v\n", statusCounters)
	if len(latencies) > 0 {
		fmt.Printf("Avg Latency:    %v\n", avg)
		fmt.Printf("P50 Latency:    %v\n", percentile(0.50))
		fmt.Printf("P90 Latency:    %v\n", percentile(0.90))
		fmt.Printf("P95 Latency:    %v\n", percentile(0.95))
		fmt.Printf("P99 Latency:    %v\n", percentile(0.99))
	}

	if len(errorKinds) > 0 {
		type kv struct {
			k string
			v int
		}
		var arr []kv
		for k, v := range errorKinds {
			arr = append(arr, kv{k, v})
		}
		sort.Slice(arr, func(i, j int) bool { return arr[i].v > arr[j].v })
		maxShow := 10
		if len(arr) < maxShow {
			maxShow = len(arr)
		}
		fmt.Println("Top Error Kinds:")
		for i := 0; i < maxShow; i++ {
			fmt.Printf("  %d) %s  (count=%d)\n", i+1, arr[i].k, arr[i].v)
		}
	}
}
