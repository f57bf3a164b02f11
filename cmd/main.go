package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"invoice-service/internal/clients"
	"invoice-service/internal/config"
	"invoice-service/internal/events"
	"invoice-service/internal/handlers"
	"invoice-service/internal/middleware"
	"invoice-service/internal/models"
	"invoice-service/internal/repository"
	"invoice-service/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	if err := migrateDatabase(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis client (optional - graceful degradation if Redis unavailable)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v", err)
			log.Println("Continuing without Redis caching...")
			redisClient = nil
		} else {
			log.Println("✓ Connected to Redis for caching")
		}
	} else {
		log.Println("REDIS_ADDR not configured, caching disabled")
	}

	// Structured logger for services and events
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize repositories
	invoiceRepo := repository.NewInvoiceRepository(db, redisClient)
	orderRepo := repository.NewOrderRepository(db)
	settingsRepo := repository.NewPrintSettingsRepository(db)
	documentRepo := repository.NewDocumentRepository(db, redisClient)

	// Initialize clients
	logoClient := clients.NewLogoClient()

	// Initialize NATS events publisher for invoice lifecycle events
	var eventsPublisher *events.Publisher
	eventsPublisher, err = events.NewPublisher(logger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize NATS events publisher: %v (continuing without events)", err)
		eventsPublisher = nil
	} else {
		log.Println("NATS events publisher initialized for invoice lifecycle events")
	}

	// Initialize services
	invoiceService := services.NewInvoiceService(invoiceRepo, orderRepo, settingsRepo, documentRepo, logoClient, eventsPublisher, logger)

	// Initialize handlers
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)

	// Setup router
	router := setupRouter(cfg, invoiceHandler)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down Invoice Service...")

		if eventsPublisher != nil {
			eventsPublisher.Close()
			log.Println("✓ Events publisher closed")
		}

		log.Println("Invoice service stopped")
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting Invoice Service on %s", cfg.GetServerAddress())
	if err := router.Run(cfg.GetServerAddress()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDatabase initializes the database connection
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// migrateDatabase runs database migrations
func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Invoice{},
		&models.LineItem{},
		&models.Order{},
		&models.CartItem{},
		&models.PrintSettings{},
		&models.InvoiceDocument{},
	)
}

// setupRouter configures the Gin router with middleware and routes
func setupRouter(cfg *config.Config, invoiceHandler *handlers.InvoiceHandler) *gin.Engine {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Setup middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())

	// Health check endpoints
	router.GET("/health", invoiceHandler.HealthCheck)
	router.GET("/ready", invoiceHandler.ReadinessCheck)

	// Public download endpoint - the short code is the capability, no auth
	router.GET("/d/:shortCode", invoiceHandler.DownloadByShortCode)

	// API routes - require tenant ID for multi-tenant data isolation
	api := router.Group("/api/v1")
	api.Use(middleware.RequireTenantID())
	api.Use(middleware.ValidateTenantUUID())
	{
		invoices := api.Group("/invoices")
		{
			invoices.GET("", invoiceHandler.ListInvoices)
			invoices.POST("", invoiceHandler.CreateInvoice)
			invoices.GET("/:id", invoiceHandler.GetInvoice)
			invoices.PUT("/:id", invoiceHandler.UpdateInvoice)
			invoices.DELETE("/:id", invoiceHandler.DeleteInvoice)
			invoices.GET("/number/:invoiceNumber", invoiceHandler.GetInvoiceByNumber)

			// Document rendering
			invoices.GET("/:id/document", invoiceHandler.RenderDocument)
			invoices.POST("/:id/document", invoiceHandler.RenderDocument)
			invoices.POST("/:id/document/store", invoiceHandler.StoreDocument)
		}

		api.GET("/documents", invoiceHandler.ListDocuments)

		settings := api.Group("/settings")
		{
			settings.GET("/print", invoiceHandler.GetPrintSettings)
			settings.PUT("/print", invoiceHandler.UpdatePrintSettings)
			settings.DELETE("/print", invoiceHandler.ResetPrintSettings)
		}
	}

	return router
}
