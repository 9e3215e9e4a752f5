package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/farellandr/canteen/config"
	"github.com/farellandr/canteen/internal/gateway"
	"github.com/farellandr/canteen/internal/handlers"
	"github.com/farellandr/canteen/internal/kafka"
	"github.com/farellandr/canteen/internal/logger"
	"github.com/farellandr/canteen/internal/middleware"
	"github.com/farellandr/canteen/internal/models"
	"github.com/farellandr/canteen/internal/redis"
	"github.com/farellandr/canteen/internal/services"
	"github.com/farellandr/canteen/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies is everything the router needs. Start builds it from the
// environment; tests build it by hand.
type Dependencies struct {
	DB        *gorm.DB
	Log       *zap.Logger
	JWTSecret string
	Server    config.ServerConfig
	Catalog   *services.CatalogService
	Bookings  *services.BookingService
	Wallet    *services.WalletService
	Dashboard *services.DashboardService
}

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to build logger: %v", err)
	}
	defer log.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	gwCfg, err := config.LoadGatewayConfig()
	if err != nil {
		return fmt.Errorf("failed to load gateway config: %v", err)
	}
	gw := gateway.NewClient(gwCfg)

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %v", err)
	}
	defer producer.Close()

	var (
		locks services.Locker           = redis.NewMemoryLocker()
		idem  services.IdempotencyStore = redis.NewMemoryIdempotencyStore()
	)
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		locks = redis.NewLocker(client)
		idem = redis.NewIdempotencyStore(client)
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("REDIS_ADDR not set, using in-process locks")
	}

	catalog := services.NewCatalogService(db, log)
	wallet := services.NewWalletService(db, gw, producer, locks, cfg.Wallet.MinTopUp, log)
	deps := &Dependencies{
		DB:        db,
		Log:       log,
		JWTSecret: cfg.JWTSecret,
		Server:    cfg.Server,
		Catalog:   catalog,
		Wallet:    wallet,
		Bookings:  services.NewBookingService(db, catalog, wallet, gw, producer, locks, idem, cfg.QRSecret, log),
		Dashboard: services.NewDashboardService(db, cfg.Scheduler.Location),
	}

	if cfg.Scheduler.AutoResetEnabled {
		resetWorker := worker.NewDailyResetWorker(catalog, cfg.Scheduler.Location, log)
		go resetWorker.Start(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}
	log.Info("server stopped")
	return nil
}

func NewRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.RequestLogger(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Server.UploadDir != "" {
		r.Static("/uploads", deps.Server.UploadDir)
	}

	setupRoutes(r, deps)
	return r
}

func setupRoutes(r *gin.Engine, deps *Dependencies) {
	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	walletHandler := handlers.NewWalletHandler(deps.Wallet)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard)

	v1 := r.Group("/v1")
	if deps.Server.RateLimit > 0 {
		v1.Use(middleware.RateLimit(deps.Server.RateLimit, deps.Server.RateBurst, deps.Log))
	}
	v1.Use(middleware.DatabaseMiddleware(deps.DB))

	public := v1.Group("")
	{
		public.POST("/register", handlers.Register)
		public.POST("/login", handlers.Login)

		mealPublic := public.Group("/meals")
		{
			mealPublic.GET("", handlers.ListMeals)
			mealPublic.GET("/popular", dashboardHandler.PopularMeals)
			mealPublic.GET("/:id", handlers.GetMeal)
		}
	}

	protected := v1.Group("")
	protected.Use(middleware.JWTAuthMiddleware(deps.JWTSecret))
	{
		protected.GET("/profile", handlers.GetProfile)

		bookings := protected.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.POST("/verify-payment", bookingHandler.VerifyPayment)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.DELETE("/:id", bookingHandler.CancelBooking)
			bookings.GET("/:id/qr", bookingHandler.BookingQR)
		}

		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/transactions", walletHandler.ListTransactions)
			wallet.POST("/add", walletHandler.AddMoney)
			wallet.POST("/verify", walletHandler.VerifyTopUp)
		}
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		meals := admin.Group("/meals")
		{
			meals.GET("", handlers.ListAllMeals)
			meals.POST("", handlers.CreateMeal)
			meals.POST("/reset-counts", handlers.ResetDailyCounts(deps.Catalog))
			meals.PUT("/:id", handlers.UpdateMeal)
			meals.DELETE("/:id", handlers.DeleteMeal)
			meals.POST("/:id/image", handlers.UploadMealImage(deps.Server.UploadDir))
		}

		admin.GET("/stats", dashboardHandler.Stats)
		admin.GET("/bookings/recent", dashboardHandler.RecentBookings)
		admin.POST("/bookings/redeem", bookingHandler.RedeemBooking)
		admin.GET("/refunds", bookingHandler.ListPendingRefunds)
		admin.POST("/refunds/:id/retry", bookingHandler.RetryRefund)
	}
}
