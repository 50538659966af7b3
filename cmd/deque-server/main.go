package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/redis-deque/pkg/blockingdeque"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	configPath := flag.String("config", "", "optional YAML config file")
	exportQueue := flag.String("export-queue", "exports", "queue drained into the configured sink")
	flag.Parse()

	// 1. Configure the client. REDIS_DEQUE_* environment variables override
	// the file.
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Create the client
	client, err := blockingdeque.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create deque client: %v", err)
	}
	defer client.Close()

	// 3. Export worker, only when a sink is configured
	ctx := context.Background()
	var workerRunning func() bool
	if sink := client.Sink(); sink != nil {
		worker, err := startExportWorker(ctx, client, sink, *exportQueue)
		if err != nil {
			log.Fatalf("Failed to start export worker: %v", err)
		}
		workerRunning = worker.IsRunning
		defer func() {
			log.Println("[SERVER] Stopping export worker...")
			worker.Stop()
		}()
	}

	// 4. HTTP server
	srv := &http.Server{
		Addr:    *addr,
		Handler: newServer(client, workerRunning),
	}

	log.Printf("[SERVER] store=%s sink=%s export_queue=%s", config.Store.Type, config.Sink.Type, *exportQueue)
	if workerRunning != nil {
		log.Printf("[SERVER] Export worker takes from the tail; POST /queues/%s/first for FIFO export", *exportQueue)
	}
	log.Println("[SERVER] Endpoints:")
	log.Println("[SERVER]   POST /queues/{name}/{first|last}       push the request body")
	log.Println("[SERVER]   GET  /queues/{name}/{first|last}        poll (?timeout=1s)")
	log.Println("[SERVER]   POST /queues/{name}/drain               drain (?max=N)")
	log.Println("[SERVER]   POST /queues/{name}/move?to=dest        move tail to dest head")
	log.Println("[SERVER]   GET  /queues/{name}                     size")
	log.Println("[SERVER]   GET  /health, GET /metrics")
	log.Printf("[SERVER] Listening on %s", *addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("[SERVER] Received shutdown signal...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] Shutdown: %v", err)
	}
}

func loadConfig(path string) (*blockingdeque.Config, error) {
	config := blockingdeque.DefaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

func startExportWorker(ctx context.Context, client *blockingdeque.Client, sink blockingdeque.Sink, queue string) (*blockingdeque.Worker[[]byte], error) {
	q, err := blockingdeque.Open(client, queue, codec.Bytes())
	if err != nil {
		return nil, err
	}
	worker, err := blockingdeque.NewWorker(q, blockingdeque.SinkHandler(sink, queue, codec.Bytes()), client.WorkerConfig())
	if err != nil {
		return nil, err
	}

	// Elements left in processing by a previous run go back first.
	if n, err := worker.Recover(ctx); err != nil {
		return nil, fmt.Errorf("failed to recover processing queue: %w", err)
	} else if n > 0 {
		log.Printf("[SERVER] Recovered %d stranded elements into %s", n, queue)
	}

	if err := worker.Start(ctx); err != nil {
		return nil, err
	}
	return worker, nil
}
