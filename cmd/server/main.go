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

	"restaurant_booking_backend/internal/cache"
	"restaurant_booking_backend/internal/chatbot"
	"restaurant_booking_backend/internal/config"
	"restaurant_booking_backend/internal/database"
	"restaurant_booking_backend/internal/handlers"
	"restaurant_booking_backend/internal/line"
	"restaurant_booking_backend/internal/middleware"
	"restaurant_booking_backend/internal/notify"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/internal/router"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.InitLogger("info", "console")
		utils.LogError(err, "Invalid configuration")
		os.Exit(1)
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	utils.SetJWTSecret(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
	utils.LogInfo("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.InitDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize Repositories
	authRepo := repositories.NewAuthRepository(db)
	bookingRepo := repositories.NewBookingRepository(db)
	floorRepo := repositories.NewFloorPlanRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	holidayRepo := repositories.NewHolidayRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	tx := repositories.NewTransactor(db)

	// Initialize Services
	defaults := services.DefaultPricingParams()
	params := services.NewPricingParamsStore(defaults)
	analyzer := services.NewDemandAnalyzer(bookingRepo, params, cfg.Loc, time.Now)
	holidayService := services.NewHolidayService(holidayRepo, db, cfg.Loc, time.Now)
	pricingService := services.NewPricingService(analyzer, holidayService, floorRepo, params, cfg.Loc, time.Now)
	settingService := services.NewSettingService(settingRepo, pricingService, defaults)
	if _, err := settingService.ReloadPricing(ctx); err != nil {
		utils.LogWarn("Could not load pricing settings, using defaults", map[string]interface{}{"error": err.Error()})
	}
	authService := services.NewAuthService(authRepo, db, cfg.JWTTTL)
	customerService := services.NewCustomerService(customerRepo, db)
	restaurantService := services.NewRestaurantService(floorRepo)

	var lineClient *line.Client
	if cfg.LineEnabled() {
		lineClient, err = line.NewClient(cfg.LineChannelSecret, cfg.LineChannelToken)
		if err != nil {
			return err
		}
	} else {
		utils.LogWarn("LINE channel not configured, chat webhook disabled")
	}

	notifiers := []services.BookingNotifier{}
	if lineClient != nil {
		notifiers = append(notifiers, notify.NewLineNotifier(lineClient, customerService, cfg.LineStaffUserIDs))
	}
	if cfg.RabbitMQURL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.RabbitMQURL)
		if err != nil {
			utils.LogWarn("RabbitMQ unavailable, booking events will not be queued", map[string]interface{}{"error": err.Error()})
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}
	fanout := notify.NewFanout(notifiers...)
	utils.LogInfo("Booking notifiers ready", map[string]interface{}{"count": fanout.Len()})

	bookingService := services.NewBookingService(services.BookingServiceDeps{
		Bookings:  bookingRepo,
		FloorPlan: floorRepo,
		Customers: customerRepo,
		Tx:        tx,
		Pricing:   pricingService,
		Notifier:  fanout,
		Duration:  cfg.BookingDuration,
		Location:  cfg.Loc,
		Clock:     time.Now,
	})

	// Background sweeps stop with ctx.
	pricingService.StartSweeper(ctx, cfg.SweepInterval)
	holidayService.StartSweeper(ctx, cfg.SweepInterval)

	// Webhook events outlive their request; they get their own context cancelled after draining.
	eventCtx, cancelEvents := context.WithCancel(context.Background())
	defer cancelEvents()

	var webhookHandler *handlers.WebhookHandler
	if lineClient != nil {
		var dedup cache.EventDeduper
		if client := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); client != nil {
			defer client.Close()
			dedup = cache.NewRedisDeduper(client, cfg.DedupTTL, "")
		} else {
			memDedup := cache.NewMemoryDeduper(cfg.DedupTTL, time.Now)
			memDedup.StartSweeper(ctx, cfg.SweepInterval)
			dedup = memDedup
		}

		flow := chatbot.NewFlow(chatbot.Deps{
			Bookings:     bookingService,
			Pricing:      pricingService,
			Customers:    customerService,
			Staff:        authService,
			Restaurants:  restaurantService,
			Messenger:    lineClient,
			Dedup:        dedup,
			RestaurantID: cfg.ChatRestaurantID,
			Location:     cfg.Loc,
			Clock:        time.Now,
		})
		webhookHandler = handlers.NewWebhookHandler(eventCtx, lineClient, flow)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), utils.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	router.Setup(engine, router.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Booking:    handlers.NewBookingHandler(bookingService),
		Restaurant: handlers.NewRestaurantHandler(restaurantService, bookingService, analyzer),
		Holiday:    handlers.NewHolidayHandler(holidayService),
		Pricing:    handlers.NewPricingHandler(pricingService),
		Setting:    handlers.NewSettingHandler(settingService),
		Webhook:    webhookHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "env": cfg.AppEnv})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		utils.LogInfo("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Graceful shutdown failed")
	}
	if webhookHandler != nil {
		webhookHandler.Wait()
	}
	return nil
}
