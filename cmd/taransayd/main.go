// Command taransayd serves the measurement data API: hierarchical metadata
// discovered from a directory tree, plus per-device time-series reads and
// writes backed by the storage engine.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/taransay/taransayd/pkg/api"
	"github.com/taransay/taransayd/pkg/config"
	"github.com/taransay/taransayd/pkg/live"
	"github.com/taransay/taransayd/pkg/meta"
	"github.com/taransay/taransayd/pkg/storage/badger"
)

func main() {
	var (
		configPath = pflag.String("config", os.Getenv("TARANSAYD_CONFIG"), "path to the YAML config file")
		listen     = pflag.String("listen", "", "listen address (overrides config)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	log.Printf("starting taransayd %s (data dir %s)", api.Version, cfg.DataDir)

	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		log.Fatalf("creating engine directory: %v", err)
	}
	engine, err := badger.New(badger.Config{
		Path:        cfg.Storage.Dir,
		MaxMemoryMB: cfg.Storage.MaxMemoryMB,
	})
	if err != nil {
		log.Fatalf("opening storage engine: %v", err)
	}
	defer engine.Close()

	hub := live.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		runEngineGC(ctx, engine)
	}()

	handler := api.New(meta.NewResolver(cfg.DataDir), engine, hub, cfg.ChartFile)

	// No write timeout: data queries stream for as long as the client
	// keeps reading.
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler.Router(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	go func() {
		log.Printf("listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("background tasks did not stop in time")
	}

	log.Println("taransayd exited cleanly")
}

// runEngineGC periodically reclaims space in the engine's value log.
func runEngineGC(ctx context.Context, engine *badger.Engine) {
	ticker := time.NewTicker(config.EngineGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.RunGC(0.5); err == nil {
				log.Println("engine value log garbage collected")
			}
		}
	}
}
