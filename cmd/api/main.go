package main

import (
	"log"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/egile-labs/egile-marketing/internal/config"
	"github.com/egile-labs/egile-marketing/pkg/gateway"
)

func main() {
	// Load environment files explicitly
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	// Load configuration from YAML with the environment overlaid
	cfg, err := config.LoadFromFile("config.yaml", config.SystemEnvironment())
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	gw := gateway.New(cfg)

	log.Println("Starting marketing gateway...")
	if err := gw.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
