package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unit_scanner/config"
	"unit_scanner/httputil"
	"unit_scanner/logging"
	"unit_scanner/scanner"
	"unit_scanner/scheduler"
	"unit_scanner/server"
	"unit_scanner/storage"
	"unit_scanner/workers"
)

var (
	scanNow   = flag.Bool("scan", false, "Execute one scan (the current recommendation) and exit")
	statusNow = flag.Bool("status", false, "Print scanner status and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("scanner.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting unit_scanner...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	log.Printf("Method catalog: %d methods", len(scanner.Methods()))

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Supabase.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Supabase.DBURL))

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	clients := httputil.NewClients()
	orchestrator := scanner.NewOrchestrator(cfg, pgStore, sqliteStore, clients)

	// One-shot commands
	if *statusNow {
		report, err := orchestrator.Status(ctx)
		if err != nil {
			log.Fatalf("Status failed: %v", err)
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return
	}

	if *scanNow {
		result, err := orchestrator.ExecuteNext(ctx)
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		if result == nil {
			log.Println("Nothing to scan")
			return
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, orchestrator)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var uploader workers.Uploader = workers.NewNoOpUploader()
	if cfg.Snapshot.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.Snapshot.Bucket,
			Region:          cfg.Snapshot.Region,
			Endpoint:        cfg.Snapshot.Endpoint,
			AccessKeyID:     cfg.Snapshot.AccessKeyID,
			SecretAccessKey: cfg.Snapshot.SecretAccessKey,
		})
		if err != nil {
			log.Printf("Warning: S3 uploader unavailable: %v", err)
		} else {
			uploader = s3Uploader
			log.Printf("Snapshot archive: s3://%s", cfg.Snapshot.Bucket)
		}
	}

	snapshotWorker := workers.NewSnapshotWorker(sqliteStore, uploader)
	go snapshotWorker.Run(ctx, 20, 2*time.Minute)
	log.Println("Snapshot worker started")

	srv := server.New(orchestrator)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
