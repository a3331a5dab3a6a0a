package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jbandu/fleetscraper/internal/config"
	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/db"
	"github.com/jbandu/fleetscraper/internal/db/repositories"
	"github.com/jbandu/fleetscraper/internal/queue"
)

// enqueue creates one scraping job from the command line, mostly for seeding
// and manual re-runs.
func main() {
	airline := flag.String("airline", "", "airline IATA or ICAO code (required)")
	jobType := flag.String("type", string(constants.JobTypeFullFleetUpdate), "job type")
	priority := flag.String("priority", string(constants.JobPriorityNormal), "job priority (high|normal|low)")
	delay := flag.Duration("delay", 0, "schedule the job this far in the future")
	flag.Parse()

	if *airline == "" {
		log.Fatal("usage: enqueue -airline <code> [-type full_fleet_update] [-priority normal] [-delay 0s]")
	}

	cfg := config.Load()
	conn, err := db.InitPostgres(cfg.DSN(), 2)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	jobQueue := queue.NewJobQueue(conn, repositories.NewAirlineRepository(conn), queue.Defaults{
		MaxRetries:        cfg.MaxRetries,
		RetryDelayMinutes: cfg.RetryDelayMinutes,
	})

	opts := queue.CreateOptions{
		JobType:  constants.JobType(*jobType),
		Priority: constants.JobPriority(*priority),
	}
	if *delay > 0 {
		opts.ScheduledAt = time.Now().UTC().Add(*delay)
	}

	jobID, err := jobQueue.Create(context.Background(), *airline, opts)
	if err != nil {
		log.Fatalf("create job: %v", err)
	}
	fmt.Println(jobID)
}
