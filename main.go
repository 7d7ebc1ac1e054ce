package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-profitability-api/config"
	"github.com/kendall-kelly/delivery-profitability-api/controllers"
	"github.com/kendall-kelly/delivery-profitability-api/logger"
	"github.com/kendall-kelly/delivery-profitability-api/middleware"
	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/services"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer logger.Sync()

	log.Info("Starting Delivery Profitability API server...", zap.String("env", cfg.GoEnv))

	if err := config.ConnectDatabase(cfg.DatabaseURL, cfg.LogLevel); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	db := config.GetDB()
	if err := db.AutoMigrate(&models.Order{}); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database migration completed successfully")

	if cfg.SeedCSVPath != "" {
		if _, err := services.SeedFromFile(context.Background(), db, cfg.SeedCSVPath); err != nil {
			log.Fatal("Failed to seed orders", zap.String("path", cfg.SeedCSVPath), zap.Error(err))
		}
	}

	if cfg.StorageConfigured() {
		if _, err := services.InitS3Service(context.Background()); err != nil {
			log.Fatal("Failed to initialize S3 service", zap.Error(err))
		}
		log.Info("Report publishing enabled", zap.String("bucket", cfg.AWSS3Bucket))
	} else {
		log.Warn("AWS_S3_BUCKET not set, report publishing disabled")
	}

	var authMiddleware gin.HandlerFunc
	if cfg.AuthConfigured() {
		if authMiddleware, err = middleware.EnsureValidToken(cfg); err != nil {
			log.Fatal("Failed to set up JWT validation", zap.Error(err))
		}
	} else {
		log.Warn("AUTH0_DOMAIN or AUTH0_AUDIENCE not set, report publishing is closed")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, authMiddleware)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info("Server is running", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shut down", zap.Error(err))
	}
	log.Info("Server stopped")
}

// setupRouter wires middleware and routes. authMiddleware guards report
// publishing; when nil every publish request is rejected.
func setupRouter(cfg *config.Config, authMiddleware gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	if corsMiddleware := newCORS(cfg.CORSAllowedOrigins); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if authMiddleware == nil {
		authMiddleware = rejectUnauthenticated
	}

	router.GET("/metrics", middleware.PrometheusHandler())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		v1.GET("/orders", controllers.ListOrders)
		v1.GET("/orders/:order_id", controllers.GetOrder)

		reports := v1.Group("/reports")
		{
			reports.GET("/overview", controllers.GetOverview)
			reports.GET("/payment-methods", controllers.GetPaymentMethods)
			reports.GET("/monthly", controllers.GetMonthlyTrend)
			reports.GET("/profitability", controllers.GetProfitabilitySplit)
			reports.GET("/discount-bands", controllers.GetDiscountImpact)
			reports.GET("/order-value-bands", controllers.GetOrderValueBands)
			reports.GET("/restaurants/refunds", controllers.GetRestaurantRefunds)
			reports.GET("/restaurants/profitability", controllers.GetRestaurantProfitability)
			reports.GET("/customers", controllers.GetCustomerProfitability)

			reports.GET("/export", controllers.DownloadReport)
			reports.POST("/export",
				authMiddleware,
				middleware.RequireScope(middleware.ExportScope),
				controllers.PublishReport,
			)
		}
	}

	return router
}

// newCORS returns nil when no origins are configured
func newCORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}

	corsConfig := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			return cors.New(corsConfig)
		}
	}
	corsConfig.AllowOrigins = origins
	return cors.New(corsConfig)
}

func rejectUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INVALID_TOKEN",
			"message": "Token validation is not configured",
		},
	})
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Delivery Profitability API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not connected",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	query := "SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename"
	if db.Dialector.Name() == "sqlite" {
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}

	var tables []string
	if err := db.WithContext(c.Request.Context()).Raw(query).Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	var orders int64
	if err := db.WithContext(c.Request.Context()).Model(&models.Order{}).Count(&orders).Error; err != nil {
		logger.Logger.Warn("failed to count orders", zap.Error(err))
	}

	netRevenue, err := services.NewReportService(db).CheckNetRevenue(c.Request.Context(), services.ReportFilter{})
	if err != nil {
		logger.Logger.Warn("failed to cross-check net platform revenue", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "Database connected",
		"dialect":              db.Dialector.Name(),
		"tables":               tables,
		"orders":               orders,
		"net_platform_revenue": netRevenue,
	})
}
