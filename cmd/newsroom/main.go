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

	"github.com/justincastilla/elastic-newsroom-sub000/internal/agents"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/api"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/config"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/coordinator"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/eventbus"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/llm"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/storage"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("newsroom: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("newsroom: %v", err)
	}
	defer store.Close()

	gen, err := buildGenerator(cfg)
	if err != nil {
		log.Fatalf("newsroom: %v", err)
	}

	registry := agents.NewRegistry(endpointsFromConfig(cfg))

	var events eventbus.Sink = eventbus.NopSink{}
	if cfg.EventBusEnabled {
		events = eventbus.NewEmitter(cfg.EventBusURL)
	}

	coord := coordinator.New(
		store,
		gen,
		agents.NewResearcherClient(registry, cfg.CallTimeoutDuration()),
		agents.NewArchivistClient(registry, agents.ArchivistConfig{
			APIKey:      cfg.ArchivistAPIKey,
			Timeout:     cfg.CallTimeoutDuration(),
			MaxAttempts: cfg.ArchivistMaxAttempts,
			RetryDelay:  cfg.RetryDelayDuration(),
			Backoff:     cfg.ArchivistBackoff,
		}),
		agents.NewEditorClient(registry, cfg.CallTimeoutDuration()),
		agents.NewPublisherClient(registry, cfg.CallTimeoutDuration()),
		events,
	)

	server := api.NewServer(cfg, coord)

	// Endpoint changes in the config file take effect without a restart
	if *configPath != "" {
		w := watcher.New(time.Second, func(string) {
			reloaded, err := config.Load(*configPath)
			if err != nil {
				log.Printf("newsroom: config reload failed: %v", err)
				return
			}
			registry.Swap(endpointsFromConfig(reloaded))
			log.Printf("newsroom: agent endpoints reloaded")
		})
		w.AddPath(*configPath)
		if err := w.Start(); err != nil {
			log.Printf("newsroom: config watcher disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	go func() {
		log.Printf("newsroom: listening on :%d", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("newsroom: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("newsroom: shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) (storage.StoryStore, error) {
	if cfg.StoreBackend == "sqlite" {
		return storage.NewSQLiteStore(cfg.SQLitePath)
	}
	return storage.NewMemoryStore(), nil
}

func buildGenerator(cfg *config.Config) (llm.TextGenerator, error) {
	if cfg.UseMockLLM || cfg.OpenAIAPIKey == "" {
		log.Printf("newsroom: using deterministic mock text generator")
		return &llm.MockGenerator{}, nil
	}
	return llm.NewOpenAIGenerator(llm.Settings{
		Model:   cfg.OpenAIModel,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
}

func endpointsFromConfig(cfg *config.Config) agents.Endpoints {
	return agents.Endpoints{
		ResearcherURL: cfg.ResearcherURL,
		ArchivistURL:  cfg.ArchivistURL,
		EditorURL:     cfg.EditorURL,
		PublisherURL:  cfg.PublisherURL,
	}
}
