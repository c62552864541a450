package main

import (
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"podforge/internal/config"
	"podforge/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{},
	)

	sweepTask, err := tasks.NewSweepRetentionTask()
	if err != nil {
		log.Fatalf("could not create sweep task: %v", err)
	}
	_, err = scheduler.Register(
		fmt.Sprintf("@every %s", cfg.SweepInterval),
		sweepTask,
		asynq.Queue(tasks.QueueMaintenance),
		asynq.Unique(cfg.SweepInterval),
	)
	if err != nil {
		log.Fatalf("could not register sweep task: %v", err)
	}

	scanTask, err := tasks.NewPublishScanTask()
	if err != nil {
		log.Fatalf("could not create publish scan task: %v", err)
	}
	_, err = scheduler.Register(
		fmt.Sprintf("@every %s", cfg.PublishScanInterval),
		scanTask,
		asynq.Queue(tasks.QueueMaintenance),
		asynq.Unique(cfg.PublishScanInterval),
	)
	if err != nil {
		log.Fatalf("could not register publish scan task: %v", err)
	}

	log.Printf("Scheduler starting (commit: %s): sweep every %s, publish scan every %s",
		CommitSHA, cfg.SweepInterval, cfg.PublishScanInterval)
	if err := scheduler.Run(); err != nil {
		log.Fatalf("could not run scheduler: %v", err)
	}
}
