// Command planstore-server serves the plan catalogue over HTTP.
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

	"github.com/festivalops/planstore/internal/api"
	"github.com/festivalops/planstore/internal/auth"
	"github.com/festivalops/planstore/internal/client"
	"github.com/festivalops/planstore/internal/icons"
	"github.com/festivalops/planstore/internal/notify"
	"github.com/festivalops/planstore/internal/plans"
	"github.com/festivalops/planstore/internal/registry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file (optional, env vars apply otherwise)")
	flag.Parse()

	configMgr := registry.NewConfigManager()
	if *configPath != "" {
		if err := configMgr.LoadFromFile(*configPath); err != nil {
			log.Fatalf("[SERVER] Failed to load config file %s: %v", *configPath, err)
		}
		log.Printf("[SERVER] Loaded configuration from %s", *configPath)
	} else {
		if err := configMgr.LoadFromEnv(); err != nil {
			log.Fatalf("[SERVER] Failed to load config from environment: %v", err)
		}
	}
	config := configMgr.GetConfig()

	store, err := client.CreateStore(config)
	if err != nil {
		log.Fatalf("[SERVER] Failed to create KV store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[SERVER] Failed to close KV store: %v", err)
		}
	}()
	log.Printf("[SERVER] KV store backend: %s", config.KVStore.Type)

	planService := plans.NewService(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var verifier *auth.Verifier
	if config.Auth.Enabled {
		verifier, err = auth.NewVerifier(ctx, config.Auth.JWKSURL, config.Auth.RefreshInterval)
		if err != nil {
			log.Fatalf("[SERVER] Failed to initialize JWKS verifier: %v", err)
		}
		log.Printf("[SERVER] Write routes require bearer tokens (JWKS: %s)", config.Auth.JWKSURL)
	} else {
		log.Printf("[SERVER] Authentication disabled, write routes are open")
	}

	var iconStore *icons.Store
	if config.Icons.Enabled {
		iconStore, err = icons.NewStore(
			config.Icons.Region,
			config.Icons.Bucket,
			config.Icons.Endpoint,
			config.Icons.AccessKeyID,
			config.Icons.SecretAccessKey,
		)
		if err != nil {
			log.Fatalf("[SERVER] Failed to initialize icon store: %v", err)
		}
		log.Printf("[SERVER] Icon storage enabled (bucket: %s)", config.Icons.Bucket)
	}

	var sink notify.Sink
	switch config.Events.Sink {
	case "kafka":
		sink, err = notify.NewKafkaSink(notify.KafkaSinkConfig{
			Brokers:         config.Events.KafkaConfig.Brokers,
			Topic:           config.Events.KafkaConfig.Topic,
			BatchSize:       config.Events.KafkaConfig.BatchSize,
			BatchTimeout:    config.Events.KafkaConfig.BatchTimeout,
			WriteTimeout:    config.Events.KafkaConfig.WriteTimeout,
			RequiredAcks:    config.Events.KafkaConfig.RequiredAcks,
			MaxMessageBytes: config.Events.KafkaConfig.MaxMessageBytes,
		})
		if err != nil {
			log.Fatalf("[SERVER] Failed to initialize Kafka sink: %v", err)
		}
	default:
		sink = notify.NoopSink{}
	}

	dispatcher := notify.NewDispatcher(sink, float64(config.Events.PublishRate), config.Events.BufferSize)
	dispatcher.Start()
	defer dispatcher.Stop()

	server := api.NewServer(planService, iconStore, verifier, dispatcher, config.Server.CORSOrigins)

	httpServer := &http.Server{
		Addr:         config.Server.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] Listening on %s", config.Server.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[SERVER] Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[SERVER] HTTP server failed: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] Graceful shutdown failed: %v", err)
	}
	log.Printf("[SERVER] Shutdown complete")
}
