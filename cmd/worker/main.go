package main

import (
	"context"

	"github.com/rjpruitt16/ezworker/internal/config"
	"github.com/rjpruitt16/ezworker/internal/orchestrator"
	"github.com/rjpruitt16/ezworker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration: %v", err)
	}

	o := orchestrator.New(cfg)

	logger.Info("EZworker starting...")
	if err := o.Run(context.Background()); err != nil {
		logger.Fatal("orchestrator error: %v", err)
	}
}
