package main

import (
	"flag"
	"fmt"
	"os"

	"account-service/config"
	"account-service/server"

	_ "github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

func main() {
	commandFlag := flag.String("command", "start", "Command to run: start | migrate")
	configFlag := flag.String("config", "", "Path to a YAML config file (default ./config.yaml when present)")
	flag.Parse()

	if *commandFlag == "" {
		fmt.Println("Usage: go run main.go --command <start|migrate> [--config config.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	server.InitLogger(cfg.Log)

	switch *commandFlag {
	case "start":
		err = server.StartServer(cfg)
	case "migrate":
		err = server.Migrate(cfg)
		if err == nil {
			logger.Info("Migration completed", zap.String("driver", cfg.Database.Driver))
		}
	default:
		fmt.Println("Unknown command:", *commandFlag)
		os.Exit(1)
	}

	if err != nil {
		logger.Error("Command failed", zap.String("command", *commandFlag), zap.Error(err))
		os.Exit(1)
	}
}
