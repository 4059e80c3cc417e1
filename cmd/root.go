package cmd

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"interviewprep/internal/config"
	logging "interviewprep/pkg/logger/pkg"
)

func Execute() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitLogger(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := logging.Logger(nil)
	defer logger.Sync()

	startServer(cfg, logger)
}
