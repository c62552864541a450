package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"podforge/internal/config"
	"podforge/internal/db"
	"podforge/internal/metrics"
	"podforge/internal/notify"
	"podforge/internal/pipeline"
	"podforge/internal/producer"
	"podforge/internal/publish"
	"podforge/internal/store"
	"podforge/internal/sweeper"
	"podforge/internal/worker"
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

	db.InitDB()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	st, _, err := store.NewFromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("could not set up artifact store: %v", err)
	}

	notifier := notify.New(cfg.NotifyEndpoint)
	prod := &producer.ExecProducer{Command: cfg.ProducerCmd, OutputDir: cfg.MediaDir}

	pipe := pipeline.New(st, prod, notifier)
	workflow := publish.NewWorkflow(publish.NewHTTPIntegration(cfg.PublishEndpoint), notifier)
	sweep := sweeper.NewSweeper(st, notifier, cfg.RetentionWindow, cfg.StuckProcessingAfter)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				tasks.QueueAssembly:    3,
				tasks.QueueMaintenance: 1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := 30 * time.Second
				maxDelay := time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}
				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(client, pipe, workflow, sweep)

	mux.HandleFunc(tasks.TypeAssembleEpisode, taskHandler.HandleAssembleEpisodeTask)
	mux.HandleFunc(tasks.TypePublishEpisode, taskHandler.HandlePublishEpisodeTask)
	mux.HandleFunc(tasks.TypePublishScan, taskHandler.HandlePublishScanTask)
	mux.HandleFunc(tasks.TypeSweepRetention, taskHandler.HandleSweepRetentionTask)

	go func() {
		http.Handle("/metrics", metrics.Handler())
		log.Printf("Metrics listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
