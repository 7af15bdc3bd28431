package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aptogate.org/internal/access"
	"aptogate.org/internal/alert"
	"aptogate.org/internal/audit"
	"aptogate.org/internal/coirequest"
	"aptogate.org/internal/compliance"
	"aptogate.org/internal/httpapi"
	"aptogate.org/internal/notify"
	"aptogate.org/internal/obs"
	"aptogate.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("APTOGATE_PG_DSN")
	if dsn == "" {
		log.Fatal("missing APTOGATE_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	resolver, err := access.NewResolver(store)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	evaluator, err := compliance.NewEvaluator(store)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}

	recorder := audit.NewRecorder(store)

	var sender notify.Sender = notify.LogSender{}
	sender, err = notify.NewLimited(sender, 5, 10, 10*time.Second)
	if err != nil {
		log.Fatalf("sender: %v", err)
	}

	reviewer, err := compliance.NewReviewer(store, recorder, sender, store)
	if err != nil {
		log.Fatalf("reviewer: %v", err)
	}
	sweeper, err := alert.NewSweeper(store, sender)
	if err != nil {
		log.Fatalf("sweeper: %v", err)
	}

	var issuer *coirequest.Issuer
	if secret := os.Getenv("APTOGATE_LINK_SECRET"); secret != "" {
		issuer, err = coirequest.NewIssuer([]byte(secret))
		if err != nil {
			log.Fatalf("link issuer: %v", err)
		}
	} else {
		log.Print("APTOGATE_LINK_SECRET not set; submission links disabled")
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Users:     store,
		Resolver:  resolver,
		Evaluator: evaluator,
		Reviewer:  reviewer,
		Certs:     store,
		Admin:     store,
		Sweeper:   sweeper,
		Recorder:  recorder,
		Issuer:    issuer,
	})

	handler := httpapi.RequestID(api.Handler())
	handler = httpapi.Logging(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.RateLimit(handler, 50, 25)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)

	addr := os.Getenv("APTOGATE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting aptogate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
