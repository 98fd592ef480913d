package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/yonatanw/ledgerscope/internal/account"
	accountStore "github.com/yonatanw/ledgerscope/internal/account/store"
	"github.com/yonatanw/ledgerscope/internal/analytics"
	"github.com/yonatanw/ledgerscope/internal/category"
	categoryStore "github.com/yonatanw/ledgerscope/internal/category/store"
	"github.com/yonatanw/ledgerscope/internal/config"
	"github.com/yonatanw/ledgerscope/internal/credential"
	credentialStore "github.com/yonatanw/ledgerscope/internal/credential/store"
	"github.com/yonatanw/ledgerscope/internal/database"
	ledgerHttp "github.com/yonatanw/ledgerscope/internal/http"
	analyticsHandler "github.com/yonatanw/ledgerscope/internal/http/analytics"
	categoryHandler "github.com/yonatanw/ledgerscope/internal/http/category"
	scrapeHandler "github.com/yonatanw/ledgerscope/internal/http/scrape"
	txHandler "github.com/yonatanw/ledgerscope/internal/http/transaction"
	"github.com/yonatanw/ledgerscope/internal/job"
	"github.com/yonatanw/ledgerscope/internal/scraper"
	"github.com/yonatanw/ledgerscope/internal/transaction"
	txStore "github.com/yonatanw/ledgerscope/internal/transaction/store"
)

func main() {
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

	cipher, err := credential.NewAESCipher(cfg.Auth.CredentialSecret)
	if err != nil {
		slog.Error("failed to build credential cipher", "error", err)
		os.Exit(1)
	}

	engine, err := category.NewEngine(ctx, categoryStore.New(db))
	if err != nil {
		slog.Error("failed to load categories", "error", err)
		os.Exit(1)
	}

	var accounts account.Repository = accountStore.New(db)

	var (
		transactionService = transaction.NewService(txStore.New(db))
		analyticsService   = analytics.NewService(transactionService)
		pool               = scraper.NewPool(scraper.NewBridgeClient(cfg.Scraper.URL, cfg.Scraper.Token))
		orchestrator       = job.NewOrchestrator(
			accounts, credentialStore.New(db), cipher, pool, transactionService, engine,
		)
	)

	var (
		scrapeH      = scrapeHandler.NewHandler(orchestrator, cfg.Scraper.MaxParallel, cfg.Scraper.Timeout)
		transactionH = txHandler.NewHandler(transactionService, accounts)
		categoryH    = categoryHandler.NewHandler(engine)
		analyticsH   = analyticsHandler.NewHandler(analyticsService, accounts)
	)

	router := ledgerHttp.New(cfg.Auth.JWTSecret, scrapeH, transactionH, categoryH, analyticsH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "app", cfg.App.Name, "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
