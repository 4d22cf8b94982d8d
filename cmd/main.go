package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"siteman/internal/cli"
	"siteman/internal/config"
	"siteman/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	if err := logger.InitLogger(cfg.Mode); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}
	defer logger.Sync()

	if err := cli.New(cfg).Execute(); err != nil {
		log.Fatal(err)
	}
}
