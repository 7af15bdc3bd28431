// The sweeper runs the daily COI expiry reconciliation, either once for a
// given day or on a cron schedule.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"aptogate.org/internal/alert"
	"aptogate.org/internal/notify"
	"aptogate.org/internal/obs"
	"aptogate.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("APTOGATE_PG_DSN"), "PostgreSQL DSN")
		schedule = flag.String("schedule", "0 9 * * *", "Cron schedule for the daily sweep")
		runOnce  = flag.Bool("run-once", false, "Run one sweep and exit")
		asOfRaw  = flag.String("as-of", "", "Sweep reference instant (RFC3339, defaults to now); implies -run-once")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or APTOGATE_PG_DSN")
	}

	obs.Init()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	var sender notify.Sender = notify.LogSender{}
	sender, err = notify.NewLimited(sender, 5, 10, 10*time.Second)
	if err != nil {
		log.Fatalf("sender: %v", err)
	}

	sweeper, err := alert.NewSweeper(store, sender)
	if err != nil {
		log.Fatalf("sweeper: %v", err)
	}

	if *runOnce || *asOfRaw != "" {
		asOf := time.Now().UTC()
		if *asOfRaw != "" {
			asOf, err = time.Parse(time.RFC3339, *asOfRaw)
			if err != nil {
				log.Fatalf("parse -as-of: %v", err)
			}
		}
		report, err := sweep(sweeper, asOf)
		if err != nil {
			log.Fatalf("sweep: %v", err)
		}
		log.Printf("sweep done: processed=%d sent=%d skipped=%d failed=%d",
			report.Processed, report.Sent, report.Skipped, report.Failed)
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		report, err := sweep(sweeper, time.Now().UTC())
		if err != nil {
			obs.Log("error", "scheduled sweep failed", map[string]any{"error": err.Error()})
			return
		}
		obs.Log("info", "scheduled sweep done", map[string]any{
			"processed": report.Processed,
			"sent":      report.Sent,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		})
	})
	if err != nil {
		log.Fatalf("schedule %q: %v", *schedule, err)
	}

	log.Printf("Starting aptogate-sweeper on schedule %q", *schedule)
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	<-c.Stop().Done()
	log.Println("Stopped")
}

func sweep(s *alert.Sweeper, asOf time.Time) (alert.Report, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return s.Run(ctx, asOf)
}
