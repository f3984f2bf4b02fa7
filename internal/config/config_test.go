package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClockworkURL != "http://localhost:4000" {
		t.Errorf("expected default clockwork_url, got %q", cfg.ClockworkURL)
	}
	if cfg.WorkerID != "ezworker-local" {
		t.Errorf("expected default worker id, got %q", cfg.WorkerID)
	}
	if cfg.Region != "dev" {
		t.Errorf("expected default region, got %q", cfg.Region)
	}
	if cfg.ProductionEnv {
		t.Error("expected ProductionEnv false when FLY_APP_NAME is unset")
	}
}

func TestLoad_ReadsFromEnvironment(t *testing.T) {
	t.Setenv("CLOCKWORK_URL", "https://clockwork.internal")
	t.Setenv("FLY_MACHINE_ID", "machine-123")
	t.Setenv("FLY_REGION", "iad")
	t.Setenv("FLY_APP_NAME", "ezworker-prod")
	t.Setenv("EXECUTOR_THREAD_COUNT", "16")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClockworkURL != "https://clockwork.internal" {
		t.Errorf("expected overridden clockwork_url, got %q", cfg.ClockworkURL)
	}
	if cfg.WorkerID != "machine-123" || cfg.Region != "iad" {
		t.Errorf("expected overridden worker id/region, got %q/%q", cfg.WorkerID, cfg.Region)
	}
	if !cfg.ProductionEnv {
		t.Error("expected ProductionEnv true when FLY_APP_NAME is set")
	}
	if cfg.ExecutorThreads != 16 {
		t.Errorf("expected overridden executor thread count, got %d", cfg.ExecutorThreads)
	}
	if cfg.RateLimitPerSec != 2.5 {
		t.Errorf("expected overridden rate limit, got %v", cfg.RateLimitPerSec)
	}
}

func TestLoad_NonPositiveExecutorThreadsDefaultsTo8(t *testing.T) {
	t.Setenv("EXECUTOR_THREAD_COUNT", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExecutorThreads != 8 {
		t.Errorf("expected fallback of 8, got %d", cfg.ExecutorThreads)
	}
}
