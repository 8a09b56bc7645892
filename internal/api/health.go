package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/egile-labs/egile-marketing/internal/config"
	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/services/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	cfg         *config.Config
	descriptor  *models.ConnectionDescriptor
	redisClient *redis.Client
	db          *database.DB
}

// NewHealthHandler creates a new health check handler. redisClient and db may
// be nil when those subsystems are disabled.
func NewHealthHandler(cfg *config.Config, descriptor *models.ConnectionDescriptor, redisClient *redis.Client, db *database.DB) *HealthHandler {
	return &HealthHandler{
		cfg:         cfg,
		descriptor:  descriptor,
		redisClient: redisClient,
		db:          db,
	}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	redisStatus := h.checkRedis()
	databaseStatus := h.checkDatabase()
	connectionStatus := h.checkConnection()

	overallStatus := "healthy"
	statusCode := fiber.StatusOK

	if redisStatus == "unhealthy" || databaseStatus == "unhealthy" || connectionStatus != "resolved" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	response := fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"redis":      redisStatus,
			"database":   databaseStatus,
			"connection": connectionStatus,
		},
	}

	if connectionStatus == "resolved" {
		response["auth_mode"] = h.descriptor.Credential.Kind()
	}

	return c.Status(statusCode).JSON(response)
}

// checkConnection verifies the resolved connection descriptor is present.
// Resolution happens once at startup, so a missing descriptor means the
// process is misconfigured, not transiently unhealthy.
func (h *HealthHandler) checkConnection() string {
	if h.descriptor == nil || h.descriptor.Credential.IsZero() {
		return "unresolved"
	}
	return "resolved"
}

// checkRedis verifies Redis connectivity
func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// checkDatabase verifies database connectivity
func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return "disabled"
	}

	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
