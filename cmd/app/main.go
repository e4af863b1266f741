package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"MarketPulse/internal/di"
	"MarketPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "load and validate config, then exit")
	flag.Parse()

	if err := run(*configPath, *checkOnly); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, checkOnly bool) error {
	// .env is optional and never overrides the real environment.
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if checkOnly {
		log.Printf("config ok: env=%s symbols=%d", cfg.Environment, len(cfg.Collector.Symbols))
		return nil
	}

	log.Printf("starting env=%s symbols=%v", cfg.Environment, cfg.Collector.Symbols)
	if cfg.Cache.Redis.Enabled {
		log.Printf("cache: layered, redis at %s", cfg.Cache.Redis.Addr)
	}
	if cfg.Kafka.Enabled {
		log.Printf("kafka: feed to %v topics=%s,%s", cfg.Kafka.Brokers, cfg.Kafka.QuotesTopic, cfg.Kafka.SnapshotsTopic)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}

	// Blocks until SIGINT or SIGTERM.
	return app.Run()
}
