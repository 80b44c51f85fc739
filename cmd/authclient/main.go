package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/app"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/config"
)

func main() {
	// Optional; production supplies real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := app.Run(cfg); err != nil {
		log.Fatalf("run: %v", err)
	}
}
