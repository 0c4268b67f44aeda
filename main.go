package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archive-indexer/internal/database"
	"archive-indexer/internal/indexer"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/memory"
	"archive-indexer/internal/server"
	"archive-indexer/internal/startup"
	"archive-indexer/internal/thumbnail"
)

func main() {
	startTime := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logging.Info("Database ready in %v", time.Since(dbStart).Round(time.Millisecond))

	if err := thumbnail.InitVips(); err != nil {
		logging.Warn("libvips unavailable, falling back to pure Go decoding: %v", err)
	}
	defer thumbnail.ShutdownVips()

	thumbs := thumbnail.New(config.ThumbnailDir, config.ThumbnailConcurrency, config.ThumbnailsEnabled)

	monitor := memory.NewMonitor(memory.FromEnv())
	monitor.Start()
	defer monitor.Stop()

	idx, err := indexer.New(db, thumbs, indexer.Options{
		ScanDirs:        config.ScanDirs,
		RatioThreshold:  config.RatioThreshold,
		ThumbnailSize:   config.ThumbnailSize,
		ScanConcurrency: config.ScanConcurrency,
		CacheCapacity:   config.CacheCapacity,
		Freshness:       config.Freshness,
		ScanInterval:    config.ScanInterval,
		ArchivesOnly:    config.ArchivesOnly,
		Memory:          monitor,
	})
	if err != nil {
		logging.Fatal("Failed to initialize indexer: %v", err)
	}

	if config.ScanOnce {
		go func() {
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigChan
			logging.Info("Received %s, cancelling scan", sig)
			cancel()
		}()

		count, err := idx.Scan(ctx, config.ScanDirs, logProgress)
		if err != nil {
			logging.Fatal("Scan failed: %v", err)
		}
		logging.Info("Scan complete: %d items indexed in %v", count, time.Since(startTime).Round(time.Millisecond))
		return
	}

	idx.Start(ctx)

	var srv *http.Server
	if config.MetricsEnabled {
		srv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      server.New(idx, db, config).Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logging.Info("Metrics server listening on :%s (started in %v)",
				config.MetricsPort, time.Since(startTime).Round(time.Millisecond))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Fatal("Metrics server error: %v", err)
			}
		}()
	}

	waitForShutdown(cancel, idx, srv)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops the scan
// loop and drains the HTTP server. In-flight scan work observes the
// cancelled context and winds down at the next batch boundary.
func waitForShutdown(cancel context.CancelFunc, idx *indexer.Indexer, srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Received %s, shutting down", sig)

	idx.Stop()
	cancel()

	if srv != nil {
		ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelTimeout()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		}
	}

	logging.Info("Shutdown complete")
}

// logProgress reports scan progress for one-shot runs, where there is
// no metrics endpoint to watch.
func logProgress(p indexer.Progress) {
	if p.IsCompleted {
		logging.Info("Progress: %s", p.Message)
		return
	}
	logging.Debug("Progress: %d/%d %s", p.ProcessedCount, p.TotalCount, p.CurrentFileName)
}
