package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warungpos/go-pos-checkout/internal/catalog"
	"github.com/warungpos/go-pos-checkout/internal/checkout"
	"github.com/warungpos/go-pos-checkout/internal/config"
	"github.com/warungpos/go-pos-checkout/internal/httpx"
	kafkax "github.com/warungpos/go-pos-checkout/internal/kafka"
	"github.com/warungpos/go-pos-checkout/internal/postgres"
	"github.com/warungpos/go-pos-checkout/internal/redisx"
	"github.com/warungpos/go-pos-checkout/internal/tenant"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (completed & cancelled, topic terpisah)
	pDone := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderCompleted, 1024)
	pDone.Start(ctx)
	pCancel := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderCancelled, 1024)
	pCancel.Start(ctx)

	// Engine wiring
	repo := &checkout.Repo{DB: db}
	reader := &catalog.Reader{DB: db}
	engine := &checkout.Engine{
		Catalog: reader,
		Tax:     &tenant.Settings{DB: db},
		Store:   repo,
	}

	router := httpx.NewRouter()
	h := &httpx.CheckoutHandler{
		Engine:        engine,
		Repo:          repo,
		Catalog:       reader,
		DB:            db,
		Redis:         rdb,
		Completed:     pDone,
		Cancelled:     pCancel,
		Service:       cfg.ServiceName,
		CommitTimeout: cfg.CommitTimeout,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pDone.Close()
	pCancel.Close()
	pDone.WaitClosed()
	pCancel.WaitClosed()
}
