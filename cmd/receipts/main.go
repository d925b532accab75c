package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warungpos/go-pos-checkout/internal/checkout"
	"github.com/warungpos/go-pos-checkout/internal/config"
	kafkax "github.com/warungpos/go-pos-checkout/internal/kafka"
	"github.com/warungpos/go-pos-checkout/internal/receipts"
	"github.com/warungpos/go-pos-checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &receipts.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-receipts",
	}

	group := getenv("RECEIPTS_GROUP", "receipts-svc")
	workers := mustAtoi(os.Getenv("RECEIPTS_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderCompleted, workers)

	go func() {
		log.Printf("receipts consumer started: group=%s topic=%s workers=%d", group, checkout.TopicOrderCompleted, workers)
		if err := cons.Start(ctx, svc.HandleOrderCompleted); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
