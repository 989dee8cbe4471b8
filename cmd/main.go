package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/adapter/postgres"
	"github.com/tapstand/kiosk/internal/adapter/rabbitmq"
	"github.com/tapstand/kiosk/internal/adapter/render"
	"github.com/tapstand/kiosk/internal/adapter/serverapi"
	"github.com/tapstand/kiosk/internal/app/agent"
	"github.com/tapstand/kiosk/internal/app/monitor"
	"github.com/tapstand/kiosk/internal/app/pour"
	"github.com/tapstand/kiosk/internal/app/session"
	"github.com/tapstand/kiosk/internal/app/state"
	"github.com/tapstand/kiosk/internal/app/tap"
	"github.com/tapstand/kiosk/internal/app/tracking"
	"github.com/tapstand/kiosk/internal/app/verify"
	"github.com/tapstand/kiosk/internal/config"
	"github.com/tapstand/kiosk/internal/domain"

	amqpAdapter "github.com/tapstand/kiosk/internal/adapter/amqp"
	httpAdapter "github.com/tapstand/kiosk/internal/adapter/http"
)

func main() {
	mode := flag.String("mode", "", "Service mode: session-service, tap-worker, kiosk-agent, notification-subscriber")
	port := flag.Int("port", 3000, "HTTP port")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	stationName := flag.String("station-name", "", "Station name (for tap-worker)")
	kinds := flag.String("kinds", "", "Comma-separated beverage kinds this station pours (for tap-worker)")
	heartbeatInterval := flag.Int("heartbeat-interval", 30, "Heartbeat interval in seconds")
	prefetch := flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	beverage := flag.String("beverage", "kofola", "Beverage kind for the kiosk-agent smoke order")
	sizeMl := flag.Int("size", 300, "Cup size in ml for the kiosk-agent smoke order")
	quantity := flag.Int("quantity", 1, "Quantity for the kiosk-agent smoke order")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	lgr := logger.New(*mode)

	switch *mode {
	case "session-service":
		runSessionService(ctx, cfg, lgr, *port)

	case "tap-worker":
		if *stationName == "" {
			log.Fatal("--station-name is required for tap-worker mode")
		}
		runTapWorker(ctx, cfg, lgr, *stationName, *kinds, *heartbeatInterval, *prefetch)

	case "kiosk-agent":
		runKioskAgent(ctx, cfg, lgr, domain.BeverageKind(*beverage), *sizeMl, *quantity)

	case "notification-subscriber":
		runNotificationSubscriber(ctx, cfg, lgr)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func runSessionService(ctx context.Context, cfg *config.Config, lgr logger.Logger, port int) {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	sessionRepo := postgres.NewSessionRepository(db)
	pourRepo := postgres.NewPourRepository(db)
	stationRepo := postgres.NewStationRepository(db)
	publisher := rabbitmq.NewPublisher(mqConn)

	stateService := state.NewService(sessionRepo, lgr)
	verifyService := verify.NewService(verify.NewFakeEstimator(), stateService, lgr)
	pourService := pour.NewService(pourRepo, sessionRepo, publisher, lgr, cfg.RestrictedSet())
	trackingService := tracking.NewService(pourRepo, stationRepo, lgr)

	sessionHandler := httpAdapter.NewSessionHandler(stateService, lgr)
	verifyHandler := httpAdapter.NewVerifyHandler(verifyService, lgr)
	dispenseHandler := httpAdapter.NewDispenseHandler(pourService, trackingService, lgr)
	logHandler := httpAdapter.NewLogHandler(lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/session/state", sessionHandler.HandleState)
	mux.HandleFunc("/verify/age", verifyHandler.VerifyAge)
	mux.HandleFunc("/dispense/start", dispenseHandler.StartPour)
	mux.HandleFunc("/dispense/status", dispenseHandler.PourStatus)
	mux.HandleFunc("/dispense/history", dispenseHandler.PourHistory)
	mux.HandleFunc("/stations/status", dispenseHandler.StationsStatus)
	mux.HandleFunc("/log", logHandler.HandleLog)

	handler := httpAdapter.LoggingMiddleware(lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(lgr)(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Session Service started on port %d", port), "startup", map[string]interface{}{
		"port": port,
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down Session Service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runTapWorker(ctx context.Context, cfg *config.Config, lgr logger.Logger, stationName, kinds string, heartbeatInterval, prefetch int) {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	pourRepo := postgres.NewPourRepository(db)
	stationRepo := postgres.NewStationRepository(db)
	publisher := rabbitmq.NewPublisher(mqConn)
	consumer := rabbitmq.NewConsumer(mqConn, prefetch)

	tapService := tap.NewService(pourRepo, stationRepo, publisher, lgr, stationName, kinds, heartbeatInterval)
	pourHandler := amqpAdapter.NewPourHandler(tapService, lgr)

	if err := tapService.Start(ctx); err != nil {
		log.Fatalf("Failed to start tap worker: %v", err)
	}

	lgr.Info("service_started", fmt.Sprintf("Tap Worker %s started", stationName), "startup", map[string]interface{}{
		"station_name": stationName,
		"kinds":        kinds,
		"prefetch":     prefetch,
	})

	go func() {
		if err := consumer.ConsumePourJobs(ctx, pourHandler.HandlePour); err != nil {
			lgr.Error("consumer_error", "Error consuming pour jobs", "runtime", nil, err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("graceful_shutdown", "Shutting down Tap Worker", "shutdown", nil)

	if err := tapService.Shutdown(ctx); err != nil {
		lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
	}
}

// runKioskAgent drives one smoke order through the full flow against a
// running session service: selection, cart, payment, pour and status poll.
func runKioskAgent(ctx context.Context, cfg *config.Config, lgr logger.Logger, kind domain.BeverageKind, sizeMl, quantity int) {
	client := serverapi.NewClient(cfg.Server.BaseURL)
	renderer := render.NewConsole()

	token := fmt.Sprintf("kiosk-%d", time.Now().UnixNano())
	machine := session.NewMachine(token, session.Config{
		MaxQuantity: cfg.Kiosk.MaxQuantity,
		Restricted:  cfg.RestrictedSet(),
		Prices:      cfg.PriceTable(),
	}, client, client, client, lgr)

	mon := monitor.New(client, lgr, cfg.PollInterval(), cfg.PollErrBackoff(), cfg.Kiosk.PollMaxChecks)
	kiosk := agent.New(ctx, machine, mon, renderer)

	if err := kiosk.Do(func(m *session.Machine) error { return m.Restore(ctx) }); err != nil {
		lgr.Warn("restore_failed", "Starting with a fresh session", token, nil)
	}

	steps := []func(m *session.Machine) error{
		func(m *session.Machine) error { return m.SelectBeverage(ctx, kind) },
		func(m *session.Machine) error { return m.RequestScreenTransition(ctx, domain.ScreenBeverageSize) },
		func(m *session.Machine) error { return m.SelectSize(ctx, sizeMl) },
		func(m *session.Machine) error { m.SetQuantity(ctx, quantity); return nil },
		func(m *session.Machine) error { return m.AddToCart(ctx) },
		func(m *session.Machine) error { return m.RequestScreenTransition(ctx, domain.ScreenCartReview) },
		func(m *session.Machine) error { return m.RequestScreenTransition(ctx, domain.ScreenPayment) },
		func(m *session.Machine) error { return m.BeginPayment(ctx, "card") },
		func(m *session.Machine) error { return m.RecordPaymentResult(ctx, domain.PaymentPaid) },
	}
	for _, step := range steps {
		if err := kiosk.Do(step); err != nil {
			client.Log(ctx, "error", "kiosk-agent", err.Error())
			log.Fatalf("Smoke order failed: %v", err)
		}
	}

	<-kiosk.PourDone()
	renderer.Render(kiosk.Snapshot())
	lgr.Info("smoke_order_done", "Kiosk smoke order finished", token, nil)
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	consumer := rabbitmq.NewConsumer(mqConn, 1)
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", nil)

	go func() {
		if err := consumer.ConsumeStatusUpdates(ctx, notificationHandler.HandleNotification); err != nil {
			lgr.Error("consumer_error", "Error consuming notifications", "runtime", nil, err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("shutdown_initiated", "Shutting down Notification Subscriber", "shutdown", nil)
}
