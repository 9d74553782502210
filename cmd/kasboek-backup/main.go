// One-shot backup of the configured workbook, for cron or a pre-upgrade
// step while the web app is not running.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"kasboek/internal/backup"
	"kasboek/internal/cli"
	"kasboek/internal/journal"
)

func main() {
	list := flag.Bool("list", false, "list existing backups instead of creating one")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)
	defer logger.Close()

	svc := backup.New(cfg.WorkbookPath, cfg.BackupDirectory)

	if *list {
		names, err := svc.List()
		if err != nil {
			slog.Error("Backup listing failed", "error", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	ctx := context.Background()
	path, err := svc.Create(ctx)
	if err != nil {
		slog.Error("Backup failed", "error", err)
		os.Exit(1)
	}

	j := cli.OpenJournal(cfg.JournalDBPath)
	defer j.Close()
	_ = j.Record(ctx, journal.Event{Kind: journal.KindBackupCreated, Detail: path})

	fmt.Println(path)
}
