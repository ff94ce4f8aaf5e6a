package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"signal-bridge/internal/account"
	"signal-bridge/internal/api"
	"signal-bridge/internal/audit"
	"signal-bridge/internal/events"
	"signal-bridge/internal/executor"
	"signal-bridge/internal/strategy"
	"signal-bridge/pkg/config"
	"signal-bridge/pkg/crypto"
	"signal-bridge/pkg/db"
	"signal-bridge/pkg/exchange"
	"signal-bridge/pkg/exchange/bybit"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("starting signal bridge on :%s (db %s)", cfg.Port, cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	keyManager, err := crypto.NewKeyManager()
	if err != nil {
		log.Fatalf("init key manager (set MASTER_ENCRYPTION_KEY): %v", err)
	}
	log.Printf("credential encryption ready (key v%d)", keyManager.CurrentVersion())

	bus := events.NewBus()

	if cfg.StrategySeedPath != "" {
		if err := strategy.ImportSeed(ctx, database.Queries(), cfg.StrategySeedPath); err != nil {
			log.Fatalf("import strategy seed: %v", err)
		}
	}

	resolver := strategy.NewResolver(strategy.SQLRepository{Queries: database.Queries()})
	credResolver := account.NewResolver(database.Queries(), keyManager)
	recorder := audit.NewRecorder(database.Queries(), bus)

	orchestrator := &executor.Orchestrator{
		Creds: credResolver,
		NewVenue: func(creds *account.Credentials) exchange.Venue {
			return bybit.NewClient(bybit.Config{
				APIKey:     creds.Key,
				APISecret:  creds.Secret,
				Testnet:    creds.Testnet,
				RecvWindow: cfg.RecvWindow,
			})
		},
		Bus:          bus,
		OrderDelay:   cfg.OrderDelay,
		AccountDelay: cfg.AccountDelay,
	}

	server := api.NewServer(database, bus, resolver, orchestrator, recorder, keyManager, cfg.JWTSecret)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
		os.Exit(0)
	}()

	if err := server.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
