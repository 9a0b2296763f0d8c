package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-momo/config"
	"github.com/yeremiapane/restaurant-momo/database"
	"github.com/yeremiapane/restaurant-momo/kds"
	"github.com/yeremiapane/restaurant-momo/messaging"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/router"
	"github.com/yeremiapane/restaurant-momo/services"
	"github.com/yeremiapane/restaurant-momo/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load configuration: %v", err)
	}

	utils.InitLogger(cfg.Log.Level, cfg.Log.Format)
	utils.ConfigureJWT(cfg.JWTSecret, cfg.JWTTTL)
	if cfg.JWTSecret == "" {
		utils.ErrorLogger.Warn("JWT_SECRET is not set, using the built-in development secret")
	}

	production := cfg.AppEnv == "production"
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		utils.ErrorLogger.Fatalf("Failed to seed admin: %v", err)
	}

	// Event fan-out: staff screens always, RabbitMQ when configured
	hub := kds.NewHub()
	broadcaster := services.MultiBroadcaster{hub}
	if cfg.RabbitMQ.URL != "" {
		conn, err := messaging.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			utils.ErrorLogger.Errorf("RabbitMQ unavailable, events stay local: %v", err)
		} else {
			publisher := messaging.NewPublisher(conn, cfg.RabbitMQ.QueueSize)
			defer publisher.Close()
			broadcaster = append(broadcaster, publisher)
			utils.InfoLogger.Infof("Publishing events to exchange %s", cfg.RabbitMQ.Exchange)
		}
	}

	notifier := services.NewNotificationService(db, smsSender(cfg), emailSender(cfg), cfg.CountryCode)
	lifecycle := services.NewOrderLifecycle(db, notifier, broadcaster, cfg.RestaurantName)
	orders := services.NewOrderService(db, services.NewGormCatalog(db), broadcaster)
	payments := services.NewPaymentManager(db, lifecycle, broadcaster)
	registerProviders(payments, cfg)

	monitor := services.NewPaymentMonitor(payments, cfg.Payments.PollInterval, cfg.Payments.PendingTimeout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	monitor.Start(ctx)
	defer monitor.Stop()

	r := router.SetupRouter(router.Deps{
		DB:         db,
		Menu:       services.NewMenuService(db),
		Orders:     orders,
		Lifecycle:  lifecycle,
		Payments:   payments,
		Monitor:    monitor,
		Hub:        hub,
		CORSOrigin: cfg.CORSOrigin,
		Production: production,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	utils.InfoLogger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("Graceful shutdown failed: %v", err)
	}
}

// registerProviders wires every enabled mobile-money provider.
func registerProviders(payments *services.PaymentManager, cfg *config.Config) {
	p := cfg.Payments
	if p.Yo.Enabled {
		yo := services.NewYoService(p.Yo, cfg.CallbackURL(models.ProviderYo), cfg.CountryCode, p.Timeout)
		if yo.TestMode() {
			utils.ErrorLogger.Warn("Yo! credentials missing, Yo! payments run in test mode")
		}
		payments.Register(models.ProviderYo, yo)
	}
	if p.MTN.Enabled {
		payments.Register(models.ProviderMTN, services.NewMTNService(p.MTN, cfg.Currency, cfg.CountryCode, p.Timeout))
	}
	if p.Airtel.Enabled {
		payments.Register(models.ProviderAirtel, services.NewAirtelService(p.Airtel, cfg.CountryCode, p.Timeout))
	}
	utils.InfoLogger.Infof("Payment providers: %v", payments.AvailableProviders())
}

func smsSender(cfg *config.Config) services.SMSSender {
	sms := cfg.Notifications.SMS
	if sms.Username == "" || sms.APIKey == "" {
		utils.InfoLogger.Info("SMS gateway not configured, using the SMS simulator")
		return services.SimulatedSMS{}
	}
	return services.NewAfricasTalkingSMS(sms, cfg.Payments.Timeout)
}

func emailSender(cfg *config.Config) services.EmailSender {
	if cfg.Notifications.Email.Host == "" {
		return nil
	}
	return services.NewSMTPEmail(cfg.Notifications.Email)
}
