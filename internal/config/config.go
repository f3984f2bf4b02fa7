// Package config loads EZworker's configuration from the process
// environment. Modeled on the teacher's viper-backed config.Load, adapted
// from a TOML file to viper's environment-binding path since the worker's
// configuration surface is entirely environmental: no flags, no file.
package config

import (
	"github.com/spf13/viper"

	"github.com/rjpruitt16/ezworker/pkg/logger"
)

// Config holds every knob the orchestrator needs to wire up its components.
type Config struct {
	ClockworkURL      string  `mapstructure:"clockwork_url"`
	WorkerID          string  `mapstructure:"fly_machine_id"`
	Region            string  `mapstructure:"fly_region"`
	ProductionEnv     bool    // derived: true iff FLY_APP_NAME is set
	ExecutorThreads   int     `mapstructure:"executor_thread_count"`
	JobQueueSize      int     `mapstructure:"job_queue_size"`
	PollIntervalSecs  int     `mapstructure:"poll_interval_seconds"`
	MaxJitterMS       int     `mapstructure:"max_jitter_ms"`
	JobsPerPull       int     `mapstructure:"jobs_per_pull"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_second"`
	ObservabilityPort int     `mapstructure:"observability_port"`
}

// Load reads configuration from the environment, applying the defaults
// spec.md §6 names plus the internal knobs a production rewrite needs.
func Load() (*Config, error) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("clockwork_url", "CLOCKWORK_URL")
	_ = viper.BindEnv("fly_machine_id", "FLY_MACHINE_ID")
	_ = viper.BindEnv("fly_region", "FLY_REGION")
	_ = viper.BindEnv("fly_app_name", "FLY_APP_NAME")
	_ = viper.BindEnv("executor_thread_count", "EXECUTOR_THREAD_COUNT")
	_ = viper.BindEnv("job_queue_size", "JOB_QUEUE_SIZE")
	_ = viper.BindEnv("poll_interval_seconds", "POLL_INTERVAL_SECONDS")
	_ = viper.BindEnv("max_jitter_ms", "MAX_JITTER_MS")
	_ = viper.BindEnv("jobs_per_pull", "JOBS_PER_PULL")
	_ = viper.BindEnv("rate_limit_per_second", "RATE_LIMIT_PER_SECOND")
	_ = viper.BindEnv("observability_port", "OBSERVABILITY_PORT")

	viper.SetDefault("clockwork_url", "http://localhost:4000")
	viper.SetDefault("fly_machine_id", "ezworker-local")
	viper.SetDefault("fly_region", "dev")
	viper.SetDefault("fly_app_name", "")
	viper.SetDefault("executor_thread_count", 8)
	viper.SetDefault("job_queue_size", 10000)
	viper.SetDefault("poll_interval_seconds", 1)
	viper.SetDefault("max_jitter_ms", 250)
	viper.SetDefault("jobs_per_pull", 1)
	viper.SetDefault("rate_limit_per_second", 0.0)
	viper.SetDefault("observability_port", 9090)

	cfg := &Config{
		ClockworkURL:      viper.GetString("clockwork_url"),
		WorkerID:          viper.GetString("fly_machine_id"),
		Region:            viper.GetString("fly_region"),
		ProductionEnv:     viper.GetString("fly_app_name") != "",
		ExecutorThreads:   viper.GetInt("executor_thread_count"),
		JobQueueSize:      viper.GetInt("job_queue_size"),
		PollIntervalSecs:  viper.GetInt("poll_interval_seconds"),
		MaxJitterMS:       viper.GetInt("max_jitter_ms"),
		JobsPerPull:       viper.GetInt("jobs_per_pull"),
		RateLimitPerSec:   viper.GetFloat64("rate_limit_per_second"),
		ObservabilityPort: viper.GetInt("observability_port"),
	}

	if cfg.ExecutorThreads <= 0 {
		logger.Warn("executor_thread_count <= 0 (%d), defaulting to 8", cfg.ExecutorThreads)
		cfg.ExecutorThreads = 8
	}

	logger.Info("configuration loaded")
	logger.Info("  clockwork_url: %s", cfg.ClockworkURL)
	logger.Info("  worker_id: %s", cfg.WorkerID)
	logger.Info("  region: %s", cfg.Region)
	logger.Info("  production_env: %v", cfg.ProductionEnv)
	logger.Info("  executor_thread_count: %d", cfg.ExecutorThreads)
	logger.Info("  job_queue_size: %d", cfg.JobQueueSize)
	logger.Info("  poll_interval_seconds: %d", cfg.PollIntervalSecs)
	logger.Info("  max_jitter_ms: %d", cfg.MaxJitterMS)
	logger.Info("  jobs_per_pull: %d", cfg.JobsPerPull)
	logger.Info("  rate_limit_per_second: %v", cfg.RateLimitPerSec)
	logger.Info("  observability_port: %d", cfg.ObservabilityPort)

	return cfg, nil
}
