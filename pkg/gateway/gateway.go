// Package gateway assembles the marketing gateway server: configuration
// validation, one-shot credential resolution, infrastructure wiring and the
// HTTP surface.
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/egile-labs/egile-marketing/internal/api"
	"github.com/egile-labs/egile-marketing/internal/config"
	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/services/chat"
	"github.com/egile-labs/egile-marketing/internal/services/circuitbreaker"
	"github.com/egile-labs/egile-marketing/internal/services/database"
	"github.com/egile-labs/egile-marketing/internal/services/secrets"
	"github.com/egile-labs/egile-marketing/internal/services/usage"
)

const resolveTimeout = 15 * time.Second

// Gateway represents a marketing gateway server instance.
type Gateway struct {
	config     *config.Config
	app        *fiber.App
	descriptor *models.ConnectionDescriptor
	redis      *redis.Client
	db         *database.DB
	usageSvc   *usage.Service
}

// New creates a Gateway. cfg is required and must not be nil.
func New(cfg *config.Config) *Gateway {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}
	return &Gateway{config: cfg}
}

// Run starts the gateway and blocks until shutdown. Configuration and
// credential-resolution errors are returned before the listener starts;
// both are fatal and require a config fix and restart.
func (g *Gateway) Run() error {
	if err := g.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(g.config)

	if err := g.resolveCredentials(); err != nil {
		return err
	}

	if err := g.initializeInfrastructure(); err != nil {
		return err
	}
	defer g.closeInfrastructure()

	g.app = createFiberApp(g.config)
	setupMiddleware(g.app, g.config)
	g.setupRoutes()

	port := g.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	fmt.Printf("Marketing gateway starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", g.config.Server.Environment)
	fmt.Printf("   Auth mode: %s\n", g.descriptor.Credential.Kind())
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := g.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	if err := g.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

// resolveCredentials performs the one-shot credential resolution, wiring a
// secret store only when the vault path will actually be taken. The Key Vault
// provider needs the Azure vault URL; the HashiCorp Vault provider carries
// its own address, so a secret name alone is enough to select it.
func (g *Gateway) resolveCredentials() error {
	azureCfg := g.config.AzureOpenAI

	vaultPath := azureCfg.KeyVaultURL != "" || g.config.Secrets.Provider == models.SecretProviderVault

	var store secrets.SecretStore
	if !azureCfg.UseManagedIdentity && azureCfg.APIKeySecretName != "" && vaultPath {
		s, err := secrets.NewStore(g.config.Secrets, azureCfg)
		if err != nil {
			return err
		}
		store = s
		defer func() {
			if err := s.Close(); err != nil {
				fiberlog.Warnf("Failed to close secret store: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	descriptor, err := config.ResolveConnection(ctx, azureCfg, store)
	if err != nil {
		return err
	}
	g.descriptor = descriptor
	return nil
}

func (g *Gateway) initializeInfrastructure() error {
	if url := g.config.Cache.RedisURL; url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		g.redis = redis.NewClient(opts)
	}

	if g.config.Database != nil {
		db, err := database.New(*g.config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		g.db = db
	}

	if g.config.UsageEnabled() {
		g.usageSvc = usage.NewService(usage.NewStore(g.db), g.config.Usage.BufferSize)
	}

	return nil
}

func (g *Gateway) closeInfrastructure() {
	if g.usageSvc != nil {
		g.usageSvc.Close()
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}
	if g.redis != nil {
		if err := g.redis.Close(); err != nil {
			fiberlog.Errorf("Failed to close Redis client: %v", err)
		}
	}
}

func (g *Gateway) setupRoutes() {
	var breaker *circuitbreaker.CircuitBreaker
	if g.config.CircuitBreaker.Enabled && g.redis != nil {
		breaker = circuitbreaker.New(g.redis, "azure_openai", circuitbreaker.Config{
			FailureThreshold: g.config.CircuitBreaker.FailureThreshold,
			SuccessThreshold: g.config.CircuitBreaker.SuccessThreshold,
			ResetAfter:       time.Duration(g.config.CircuitBreaker.ResetAfterSecs) * time.Second,
		})
	}

	completionSvc := chat.NewCompletionService(g.config, g.descriptor, breaker, g.usageSvc)
	completionHandler := api.NewCompletionHandler(completionSvc)
	healthHandler := api.NewHealthHandler(g.config, g.descriptor, g.redis, g.db)

	g.app.Get("/health", healthHandler.HealthCheck)

	v1 := g.app.Group("/v1")
	v1.Post("/chat/completions", completionHandler.ChatCompletion)
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "MarketingGateway v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		CaseSensitive:     true,
		ServerHeader:      "MarketingGateway",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
}

func setupLogLevel(cfg *config.Config) {
	switch cfg.GetNormalizedLogLevel() {
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "warn":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}
