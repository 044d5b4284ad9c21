package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"PolyEdge/internal/di"
	"PolyEdge/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	once := flag.Bool("once", false, "run a single scan cycle and exit")
	status := flag.Bool("status", false, "print ledger statistics and exit")
	priceOnly := flag.Bool("price-only", false, "scan price markets only")
	weatherOnly := flag.Bool("weather-only", false, "scan weather markets only")
	flag.Parse()

	if *priceOnly && *weatherOnly {
		log.Fatal("-price-only and -weather-only are mutually exclusive")
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *priceOnly {
		cfg.Trading.PriceEnabled, cfg.Trading.WeatherEnabled = true, false
	}
	if *weatherOnly {
		cfg.Trading.PriceEnabled, cfg.Trading.WeatherEnabled = false, true
	}
	if *once || *status {
		cfg.Server.Enabled = false
		cfg.Feeds.Binance.StreamEnabled = false
	}

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch {
	case *status:
		_ = enc.Encode(app.Status())
	case *once:
		report, err := app.RunOnce(ctx)
		if err != nil {
			log.Printf("scan cycle failed: %v", err)
			os.Exit(1)
		}
		_ = enc.Encode(report)
	default:
		// Run application (blocks until signal)
		if err := app.Run(ctx); err != nil {
			log.Printf("app error: %v", err)
			os.Exit(1)
		}
	}
}
