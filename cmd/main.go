package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"critterlens/internal"
	"critterlens/internal/ai"
	"critterlens/internal/bot"
	"critterlens/internal/catalog"
	"critterlens/internal/fingerprint"
	"critterlens/internal/logging"
	"critterlens/internal/s3"
	"critterlens/internal/service"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	log, err := logging.New("errors.log")
	if err != nil {
		panic(err)
	}
	defer log.Close()

	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	strat, err := fingerprint.ForConfig(cfg)
	if err != nil {
		log.Errorf("strategy: %v", err)
		os.Exit(1)
	}

	var s3c s3.Client
	if cfg.S3Enabled() {
		s3c, err = s3.New(cfg)
		if err != nil {
			log.Errorf("s3 init: %v", err)
			os.Exit(1)
		}
	}

	var mirror catalog.Mirror
	if s3c != nil {
		mirror = s3c
	}
	store, err := catalog.Open(ctx, cfg.CatalogPath, strat, mirror, cfg.CatalogKey, log)
	if err != nil {
		log.Errorf("catalog: %v", err)
		os.Exit(1)
	}
	log.Infof("catalog loaded: %d entries (strategy=%s)", store.Len(), strat.Name())

	svc := service.New(cfg, store, s3c, log)
	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Errorf("service stopped: %v", err)
			cancel()
		}
	}()

	facts := ai.NewFactGenerator(cfg.GeminiAPIKey, log)

	b, err := bot.NewTelegramBot(cfg, store, strat, facts, s3c, log)
	if err != nil {
		log.Errorf("bot init: %v", err)
		return
	}
	if err := b.Run(ctx); err != nil {
		log.Errorf("bot run: %v", err)
		return
	}

	<-ctx.Done()
	time.Sleep(300 * time.Millisecond)
}
