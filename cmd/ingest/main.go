package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/yonatanw/ledgerscope/internal/category"
	categoryStore "github.com/yonatanw/ledgerscope/internal/category/store"
	"github.com/yonatanw/ledgerscope/internal/config"
	"github.com/yonatanw/ledgerscope/internal/database"
	"github.com/yonatanw/ledgerscope/internal/dump"
	"github.com/yonatanw/ledgerscope/internal/transaction"
	txStore "github.com/yonatanw/ledgerscope/internal/transaction/store"
)

// ingest loads a scrape dump file straight into storage, bypassing the
// scraper bridge. Useful for backfills and for dumps produced elsewhere.
func main() {
	var (
		file        = flag.String("file", "", "path to the scrape dump file")
		accountFlag = flag.String("account", "", "account id to attach the records to")
		institution = flag.String("institution", "", "override the dump's institution id")
	)

	flag.Parse()

	if *file == "" || *accountFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	accountID, err := uuid.Parse(*accountFlag)
	if err != nil {
		slog.Error("invalid account id", "error", err)
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine, err := category.NewEngine(ctx, categoryStore.New(db))
	if err != nil {
		slog.Error("failed to load categories", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		slog.Error("failed to open dump file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	d, err := dump.Parse(f)
	if err != nil {
		slog.Error("failed to parse dump", "error", err)
		os.Exit(1)
	}

	if *institution != "" {
		d.InstitutionID = *institution
	}

	svc := dump.NewService(transaction.NewService(txStore.New(db)), engine)

	stats, err := svc.Ingest(ctx, accountID, d)
	if err != nil {
		slog.Error("ingestion failed", "error", err,
			"saved", stats.Saved, "duplicates", stats.Duplicates, "skipped", stats.Skipped)
		os.Exit(1)
	}

	slog.Info("ingestion complete",
		"institution", d.InstitutionID,
		"saved", stats.Saved,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped)
}
