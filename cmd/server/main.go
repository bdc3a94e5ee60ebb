package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/booking"
	"github.com/cineseat/ticketing/internal/config"
	"github.com/cineseat/ticketing/internal/database"
	"github.com/cineseat/ticketing/internal/handler"
	"github.com/cineseat/ticketing/internal/notifier"
	"github.com/cineseat/ticketing/internal/payment"
	"github.com/cineseat/ticketing/internal/queue"
	"github.com/cineseat/ticketing/internal/repository"
	"github.com/cineseat/ticketing/internal/reservation"
	"github.com/cineseat/ticketing/internal/router"
	queue_publisher "github.com/cineseat/ticketing/internal/service"
	"github.com/cineseat/ticketing/internal/validate"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; realtime fan-out and rate limiting run degraded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories.
	ledgerRepo := repository.NewLedgerRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	showtimeRepo := repository.NewShowtimeRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	voucherRepo := repository.NewVoucherRepo(db)
	comboRepo := repository.NewComboRepo(db)

	// Reservation engine.
	events := notifier.New(rdb)
	go events.Run(ctx)

	coord := reservation.NewCoordinator(ledgerRepo, events, reservation.Config{
		SelectTTL:  cfg.HoldSelectTTL,
		PaymentTTL: cfg.HoldPaymentTTL,
		MaxBatch:   cfg.MaxSeatsPerOrder,
	})
	reclaimer := reservation.NewReclaimer(coord, ledgerRepo, cfg.SweepInterval)
	coord.SetScheduler(reclaimer)
	go reclaimer.Run(ctx)

	// Payment gateway: Stripe when configured, otherwise the mock.
	var gateway payment.Gateway
	gateway, err = payment.NewStripeGateway(cfg.Currency, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	if err != nil {
		log.Printf("stripe disabled (%v); using mock gateway", err)
		gateway = payment.NewMockGateway()
	}

	orch := booking.NewOrchestrator(
		bookingRepo, ledgerRepo, showtimeRepo, seatRepo, comboRepo, voucherRepo,
		coord, gateway, queue_publisher.NewReceiptPublisher(),
	)

	// Confirmation consumer (receipt log / downstream delivery).
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validate.New()

	router.RegisterRoutes(e, router.Handlers{
		Health:   handler.NewHealthHandler(db, rdb),
		Seats:    handler.NewSeatHandler(ledgerRepo, seatRepo, showtimeRepo, coord),
		Bookings: handler.NewBookingHandler(orch),
		Webhook:  handler.NewWebhookHandler(orch),
		Events:   handler.NewEventsHandler(events, coord, showtimeRepo),
	}, cfg, config.LoadRateLimitConfig(), rdb)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Printf("http server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
