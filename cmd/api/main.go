package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/eshop-auth-api/internal/config"
	"github.com/yourusername/eshop-auth-api/internal/handler"
	"github.com/yourusername/eshop-auth-api/internal/middleware"
	pgRepo "github.com/yourusername/eshop-auth-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/eshop-auth-api/internal/repository/redis"
	"github.com/yourusername/eshop-auth-api/internal/service"
	"github.com/yourusername/eshop-auth-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	userRepo := pgRepo.NewUserRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Email transport
	var emailService service.EmailService
	if cfg.Email.Enabled {
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
		emailService = resendService
	} else {
		log.Println("Outbound email disabled, OTP codes are logged instead of sent")
		emailService = &service.NoopEmailService{}
	}

	// Services
	otpGuard, err := service.NewOtpGuardService(cacheRepo, cfg.Otp)
	if err != nil {
		log.Printf("Failed to initialize OtpGuardService: %v", err)
		os.Exit(1)
	}
	otpService, err := service.NewOtpService(cacheRepo, otpGuard, emailService, cfg.Otp)
	if err != nil {
		log.Printf("Failed to initialize OtpService: %v", err)
		os.Exit(1)
	}
	authService, err := service.NewAuthService(userRepo, otpGuard, otpService)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}

	// Handlers and middleware
	authHandler := handler.NewAuthHandler(authService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()

	// Trusted proxies for correct c.ClientIP() behavior: in production trust
	// nothing (IP spoofing protection), in development trust localhost.
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Hello API"})
	})

	// OpenAPI document for API consumers
	router.StaticFile("/docs.json", "./static/swagger-output.json")

	api := router.Group("/api")
	api.Use(rateLimiter.LimitByIP(middleware.DefaultAuthRateLimitConfig()))
	{
		strict := middleware.StrictAuthRateLimitConfig()
		api.POST("/user-registration", rateLimiter.Limit(strict), authHandler.RegisterUser)
		api.POST("/seller-registration", rateLimiter.Limit(strict), authHandler.RegisterSeller)
		api.POST("/verify-user", rateLimiter.Limit(strict), authHandler.VerifyUser)
		api.POST("/verify-seller", rateLimiter.Limit(strict), authHandler.VerifySeller)
	}

	// HTTP server with timeouts against slow clients
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Auth service running at http://localhost:%s/api", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}

	log.Println("Server exited properly")
}
