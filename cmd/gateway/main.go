package main

import (
	"flag"

	"go.uber.org/zap"

	"github.com/stovetop/galley/gateway"
	"github.com/stovetop/galley/pkg/logger"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to a TOML config file (watched for changes)")
	listenAddr := flag.String("listen", "", "Address to listen on (overrides the config file)")
	dbPath := flag.String("db", "", "Path to SQLite database (default: in-memory)")
	token := flag.String("token", "", "Bearer token required on query requests")
	seed := flag.Bool("seed", false, "Create and fill the demo tracks table")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Set up logger
	logger := logger.NewLogger(*debug)
	defer logger.Sync()

	config, err := gateway.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Flags override the file
	if *listenAddr != "" {
		config.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		config.DBPath = *dbPath
	}
	if *token != "" {
		config.Token = *token
	}

	logger.Info("galley action gateway starting",
		zap.String("listen", config.ListenAddr),
		zap.Bool("debug", *debug),
	)

	g, err := gateway.New(config, logger)
	if err != nil {
		logger.Fatal("failed to create gateway", zap.Error(err))
	}
	defer g.Close()

	if *seed {
		if err := gateway.Seed(g.DB()); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
		logger.Info("demo tracks table seeded")
	}

	if *configPath != "" {
		if err := g.WatchConfig(*configPath); err != nil {
			logger.Fatal("failed to watch config", zap.Error(err))
		}
	}

	if err := g.Run(); err != nil {
		logger.Fatal("gateway server failed", zap.Error(err))
	}
}
