package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"taskpilot/internal/database"
	"taskpilot/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db          *database.MongoDB
	redis       *services.RedisService
	connManager *services.ConnectionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB, redis *services.RedisService, connManager *services.ConnectionManager) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, connManager: connManager}
}

// Handle responds with server health status
// GET /health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"

	mongoStatus := "connected"
	if err := h.db.Ping(c.Context()); err != nil {
		mongoStatus = "unreachable"
		status = "degraded"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "connected"
		if err := h.redis.Ping(c.Context()); err != nil {
			redisStatus = "unreachable"
			status = "degraded"
		}
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":      status,
		"mongodb":     mongoStatus,
		"redis":       redisStatus,
		"connections": h.connManager.Count(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
