package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"taskpilot/internal/config"
	"taskpilot/internal/database"
	"taskpilot/internal/handlers"
	"taskpilot/internal/jobs"
	"taskpilot/internal/logging"
	"taskpilot/internal/middleware"
	"taskpilot/internal/services"
	"taskpilot/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting TaskPilot Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, App: %s)", cfg.Port, cfg.AppName)

	// Connect to MongoDB
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	db, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer db.Close(context.Background())

	if err := db.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize database indexes: %v", err)
	}
	log.Println("✅ MongoDB connected and indexes ensured")

	// Redis is optional; session lifecycle notifications degrade to no-ops
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Redis unavailable: %v (session notifications disabled)", err)
			redisService = nil
		} else {
			defer redisService.Close()
			log.Println("✅ Redis connected")
		}
	}

	// JWT auth (optional in development, required in production)
	var jwtAuth *auth.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT authentication enabled")
	} else if cfg.Environment == "production" {
		log.Fatal("❌ JWT_SECRET is required in production")
	} else {
		log.Println("⚠️ JWT_SECRET not set - auth disabled (development mode only)")
	}

	// Services
	directoryService := services.NewDirectoryService(db)
	sessionStore := services.NewSessionStore(db, directoryService, redisService)
	messageService := services.NewMessageService(db, directoryService, cfg.MessageDedupWindow)
	contextBuilder := services.NewContextBuilder(messageService)
	connManager := services.NewConnectionManager()
	services.InitMetrics(connManager)

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("session_cleanup", jobs.NewSessionCleanupJob(sessionStore, cfg.AppName, cfg.SessionMaxAge))
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "TaskPilot v1.0",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    10 * 1024 * 1024, // 10MB for structured message payloads
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("taskpilot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, redisService, connManager)
	sessionHandler := handlers.NewSessionHandler(sessionStore, cfg.AppName)
	conversationHandler := handlers.NewConversationHandler(messageService, contextBuilder)
	wsHandler := handlers.NewWebSocketHandler(connManager, sessionStore, messageService, contextBuilder, cfg.AppName)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api", middleware.AuthMiddleware(jwtAuth))
	api.Post("/sessions", sessionHandler.Create)
	api.Get("/sessions", sessionHandler.List)
	api.Get("/sessions/:id", sessionHandler.Get)
	api.Delete("/sessions/:id", sessionHandler.Delete)

	api.Post("/conversations", conversationHandler.Create)
	api.Get("/conversations/:id/history", conversationHandler.GetHistory)
	api.Get("/conversations/:id/summary", conversationHandler.GetSummary)
	api.Get("/conversations/:id/context", conversationHandler.GetContext)
	api.Put("/conversations/:id/status", conversationHandler.UpdateStatus)
	api.Get("/clients/:id/conversations", conversationHandler.ListForClient)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/chat", middleware.OptionalAuthMiddleware(jwtAuth))
	app.Get("/ws/chat", websocket.New(wsHandler.Handle))

	log.Printf("🌐 Server starting on port %s", cfg.Port)
	log.Printf("💬 Chat endpoint: ws://localhost:%s/ws/chat", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()
		connManager.CloseAll()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
