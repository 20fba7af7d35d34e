package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutriwatch/internal/cache"
	"nutriwatch/internal/config"
	"nutriwatch/internal/database"
	"nutriwatch/internal/events"
	"nutriwatch/internal/handlers"
	"nutriwatch/internal/logger"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/middleware"
	"nutriwatch/internal/services"
	"nutriwatch/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "nutriwatch/internal/docs" // Import swagger docs
)

// @title           NutriWatch API
// @version         1.0
// @description     NutriWatch tracks clinic nutrition supplies and moderates additions to the food catalog.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Shared key for system integrations.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Side channels
	publisher, err := newPublisher(appConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("event publisher close error: %v", err)
		}
	}()

	locker, closeLocker := newLocker(appConfig)
	defer closeLocker()

	appMetrics := metrics.New()
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	policy := services.DefaultDuplicatePolicy()
	policy.MinTermLength = appConfig.DuplicateMinTermLength

	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db, auditService)
	inventoryService := services.NewInventoryService(db, auditService)
	stockService := services.NewStockService(db, auditService, appConfig.StockAdjustMaxRetries)
	ledgerService := services.NewLedgerService(db)
	foodService := services.NewFoodService(db, auditService, policy)
	foodRequestService := services.NewFoodRequestService(db, auditService, policy)

	// Initialize handlers
	categoryHandler := handlers.NewItemCategoryHandler(categoryService)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, publisher, appMetrics, handlers.ReportDefaults{
		LowStockThreshold: appConfig.LowStockThreshold,
		ExpiringWithin:    appConfig.ExpiringWithin,
	})
	stockHandler := handlers.NewStockHandler(stockService, publisher, appMetrics)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	auditHandler := handlers.NewAuditHandler(auditService)
	foodHandler := handlers.NewFoodHandler(foodService, publisher, appMetrics)
	foodRequestHandler := handlers.NewFoodRequestHandler(foodRequestService, locker, appConfig.SubmitGuardTTL, publisher, appMetrics)

	// Initialize Gin router
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics(appMetrics))
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	anyRole := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff, middleware.RoleNutritionist)
	inventoryRoles := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	// Inventory routes
	inventory := protected.Group("/inventory")
	inventory.GET("/categories", anyRole, categoryHandler.GetCategories)
	inventory.GET("/categories/:id", anyRole, categoryHandler.GetCategoryByID)
	inventory.POST("/categories", adminOnly, categoryHandler.CreateCategory)
	inventory.PUT("/categories/:id", adminOnly, categoryHandler.UpdateCategory)
	inventory.DELETE("/categories/:id", adminOnly, categoryHandler.DeleteCategory)

	inventory.GET("/items", anyRole, inventoryHandler.ListItems)
	inventory.GET("/items/:id", anyRole, inventoryHandler.GetItemByID)
	inventory.POST("/items", inventoryRoles, inventoryHandler.CreateItem)
	inventory.PUT("/items/:id", inventoryRoles, inventoryHandler.UpdateItem)
	inventory.DELETE("/items/:id", adminOnly, inventoryHandler.DeleteItem)
	inventory.POST("/items/:id/stock-in", inventoryRoles, stockHandler.StockIn)
	inventory.POST("/items/:id/stock-out", inventoryRoles, stockHandler.StockOut)
	inventory.GET("/items/:id/reconcile", inventoryRoles, ledgerHandler.Reconcile)

	inventory.GET("/transactions", inventoryRoles, ledgerHandler.ListTransactions)
	inventory.GET("/transactions/:id", inventoryRoles, ledgerHandler.GetTransactionByID)

	inventory.GET("/reports/low-stock", inventoryRoles, inventoryHandler.LowStock)
	inventory.GET("/reports/expiring", inventoryRoles, inventoryHandler.Expiring)

	// Audit routes
	protected.GET("/audit-logs", adminOnly, auditHandler.ListAuditLogs)
	protected.GET("/audit-logs/:id", adminOnly, auditHandler.GetAuditLogByID)

	// Food catalog routes
	foods := protected.Group("/foods")
	foods.GET("", anyRole, foodHandler.ListFoods)
	foods.GET("/tags", anyRole, foodHandler.GetTags)
	foods.GET("/check-duplicate", anyRole, foodHandler.CheckDuplicate)
	foods.GET("/:id", anyRole, foodHandler.GetFoodByID)
	foods.POST("", adminOnly, foodHandler.CreateFood)

	// Food request routes
	requestRoles := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleNutritionist)
	foodRequests := protected.Group("/food-requests")
	foodRequests.POST("", middleware.RequireRole(middleware.RoleNutritionist), foodRequestHandler.Submit)
	foodRequests.GET("", requestRoles, foodRequestHandler.ListFoodRequests)
	foodRequests.GET("/stats", requestRoles, foodRequestHandler.Stats)
	foodRequests.POST("/batch-approve", adminOnly, foodRequestHandler.BatchApprove)
	foodRequests.POST("/batch-reject", adminOnly, foodRequestHandler.BatchReject)
	foodRequests.GET("/:id", requestRoles, foodRequestHandler.GetFoodRequestByID)
	foodRequests.DELETE("/:id", middleware.RequireRole(middleware.RoleNutritionist), foodRequestHandler.Withdraw)
	foodRequests.POST("/:id/approve", adminOnly, foodRequestHandler.Approve)
	foodRequests.POST("/:id/reject", adminOnly, foodRequestHandler.Reject)

	// System integration routes (X-API-Key)
	system := v1.Group("/system")
	system.Use(middleware.SystemAuthMiddleware(appConfig.SystemAPIKey))
	system.POST("/inventory/items/:id/stock-in", stockHandler.StockIn)
	system.POST("/inventory/items/:id/stock-out", stockHandler.StockOut)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting NutriWatch backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infow("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Get().Info("KAFKA_BROKERS not set, domain events are disabled")
		return events.NewNoopPublisher(), nil
	}
	pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	logger.Get().Infow("Publishing domain events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return pub, nil
}

// newLocker returns the Redis submission guard when REDIS_ADDR is set and an
// in-process guard otherwise.
func newLocker(cfg *config.Config) (cache.Locker, func()) {
	if cfg.RedisAddr == "" {
		logger.Get().Info("REDIS_ADDR not set, using in-process submission guard")
		return cache.NewMemoryLocker(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return cache.NewRedisLocker(client), func() {
		if err := client.Close(); err != nil {
			logger.Get().Warnf("redis close error: %v", err)
		}
	}
}
