package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/config"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/eventbus"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	port := flag.Int("port", config.DefaultEventBusPort, "listen port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("eventbus: %v", err)
	}

	hub := eventbus.NewHub(cfg.HistorySize, cfg.SubscriberBuffer)
	server := eventbus.NewServer(hub, cfg.HeartbeatDuration())

	go func() {
		log.Printf("eventbus: listening on :%d", *port)
		if err := server.Start(*port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("eventbus: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("eventbus: shutdown: %v", err)
	}
}
