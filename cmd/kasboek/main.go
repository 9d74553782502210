package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/user"
	"time"

	"kasboek/internal/backup"
	"kasboek/internal/cli"
	apphttp "kasboek/internal/http"
	"kasboek/internal/journal"
	"kasboek/internal/ledger"
	"kasboek/internal/ledger/excel"
	gsheet "kasboek/internal/ledger/google"
	mem "kasboek/internal/ledger/memory"
	"kasboek/internal/recommend"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)
	defer logger.Close()

	ctx, cancel := cli.ShutdownSignal()
	defer cancel()

	// Choose data backend (default: excel).
	var (
		store   ledger.Store
		headers ledger.HeaderValidator
	)
	switch cfg.DataBackend {
	case "sheets":
		_, sheet := cfg.Workbook()
		client, err := gsheet.NewFromEnv(ctx, sheet)
		if err != nil {
			slog.Error("Failed to initialize Google Sheets backend", "error", err)
			os.Exit(1)
		}
		store, headers = client, client
		slog.Info("Initialized Google Sheets backend")
	case "memory":
		store = mem.New()
		slog.Info("Initialized memory backend")
	default:
		st := excel.New(cfg.Workbook)
		store, headers = st, st
		slog.Info("Initialized Excel backend", "workbook", cfg.WorkbookPath())
	}

	j := cli.OpenJournal(cfg.JournalDBPath)
	defer j.Close()

	backups := backup.New(cfg.WorkbookPath, cfg.BackupDirectory)
	backups.CreateAtStartup(ctx)

	recommender := recommend.New(recommend.NewExcelSource(cfg.ReferenceSetPath))

	srv := apphttp.NewServer(":"+cfg.Port, cfg, store, apphttp.Options{
		Headers:         headers,
		Recommender:     recommender,
		Backups:         backups,
		Events:          j,
		Logger:          logger,
		RequestShutdown: cancel,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	actor := "onbekend"
	if u, err := user.Current(); err == nil {
		actor = u.Username
	}
	_ = j.Record(ctx, journal.Event{
		Kind:  journal.KindSessionStarted,
		Actor: actor,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	slog.Info("Starting kasboek server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"workbook", cfg.WorkbookPath())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}
