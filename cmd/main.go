package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/app"
	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/constants"
	"github.com/DennisTemoye/propty-os1-sub003/internal/controllers"
	"github.com/DennisTemoye/propty-os1-sub003/internal/middleware"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/twilio/twilio-go"
	_ "time/tzdata"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	defer cfg.Close()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize allocation-service:", err)
	}
	defer application.Close()

	clock := utils.SystemClock{}

	// Services
	var verifier services.PaymentVerifier = services.NoopPaymentVerifier{}
	if cfg.StripeSecretKey != "" {
		verifier = services.NewStripePaymentVerifier(cfg.StripeSecretKey, cfg.PaymentCurrency)
	} else {
		utils.Logger.Warn("STRIPE_SECRET_KEY not set; card payments are recorded without verification.")
	}
	commissionService := services.NewCommissionService(cfg, application.Store, clock)
	allocationService := services.NewAllocationService(cfg, application.Store, commissionService, verifier, clock)

	subscribers := []services.EventSubscriber{services.LogSubscriber{}}
	if cfg.SendGridAPIKey != "" && cfg.LetterDeskEmail != "" {
		subscribers = append(subscribers, services.NewLetterDeskNotifier(
			sendgrid.NewSendClient(cfg.SendGridAPIKey),
			cfg.OrganizationName,
			cfg.SendgridFrom,
			cfg.LetterDeskEmail,
			cfg.LDFlag_SendgridSandboxMode,
		))
	}
	if cfg.TwilioAccountSID != "" && cfg.SalesDeskPhone != "" {
		twilioClient := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
		subscribers = append(subscribers, services.NewSalesDeskNotifier(twilioClient.Api, cfg.TwilioFromPhone, cfg.SalesDeskPhone))
	}
	dispatcher := services.NewEventDispatcher(application.Store, clock, cfg.EventMaxAttempts, cfg.EventBatchSize, subscribers...)

	if cfg.LDFlag_SeedDbWithTestData {
		if err := app.SeedAllTestData(context.Background(), application.Store, commissionService); err != nil {
			utils.Logger.Fatal("Failed to seed demo data:", err)
		}
	}

	// Router setup
	router := app.NewRouter(app.Controllers{
		Health:      controllers.NewHealthController(application.Store, cfg.StoreBackend),
		Units:       controllers.NewUnitController(allocationService),
		Allocations: controllers.NewAllocationController(allocationService),
		Commissions: controllers.NewCommissionController(commissionService),
		Installment: controllers.NewInstallmentController(allocationService),
	})

	// Cron job setup
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	_, err = c.AddFunc(cfg.EventDispatchCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.EventDispatchTimeout)
		defer cancel()
		res, err := dispatcher.DispatchPending(utils.WithActorID(ctx, utils.SystemActorID))
		if err != nil {
			utils.Logger.WithError(err).Error("Event dispatch run failed")
			return
		}
		if res.Dispatched+res.Retrying+res.Failed > 0 {
			utils.Logger.Infof("Event dispatch: %d dispatched, %d retrying, %d failed", res.Dispatched, res.Retrying, res.Failed)
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule event dispatch cron")
	}

	_, err = c.AddFunc(cfg.OfferExpiryCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.OfferExpiryTimeout)
		defer cancel()
		n, err := allocationService.SweepExpiredOffers(utils.WithActorID(ctx, utils.SystemActorID))
		if err != nil {
			utils.Logger.WithError(err).Error("Offer expiry sweep failed")
			return
		}
		if n > 0 {
			utils.Logger.Infof("Announced %d expired offers", n)
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule offer expiry cron")
	}

	c.Start()
	defer c.Stop()
	utils.Logger.Info("Scheduled event dispatch and offer expiry cron jobs")

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, constants.LocalDevOrigin)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.ActorIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Logger.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Logger.Fatal("allocation-service failed to start:", err)
	}
	utils.Logger.Info("allocation-service stopped")
}
