package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aidab12/LinguaTime/internal/app"
	"github.com/aidab12/LinguaTime/internal/calendar"
	"github.com/aidab12/LinguaTime/internal/clock"
	"github.com/aidab12/LinguaTime/internal/config"
	"github.com/aidab12/LinguaTime/internal/logger"
	"github.com/aidab12/LinguaTime/internal/notify"
	"github.com/aidab12/LinguaTime/internal/storage/postgres"
	transporthttp "github.com/aidab12/LinguaTime/internal/transport/http"
	"github.com/aidab12/LinguaTime/internal/worker"
	"github.com/aidab12/LinguaTime/migrations"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
	queue := worker.NewQueue(redisOpt)
	defer func() { _ = queue.Close() }()

	clk := clock.NewSystem()

	slotCfg := app.DefaultSlotConfig()
	slotCfg.MorningStart = cfg.MorningSlotStart
	slotCfg.MorningEnd = cfg.MorningSlotEnd
	slotCfg.EveningStart = cfg.EveningSlotStart
	slotCfg.EveningEnd = cfg.EveningSlotEnd
	if loc, err := time.LoadLocation(cfg.BusinessTimeZone); err == nil {
		slotCfg.Location = loc
	} else {
		log.Warn("unknown business timezone, keeping default",
			zap.String("timezone", cfg.BusinessTimeZone), zap.Error(err))
	}

	directoryRepo := postgres.NewDirectoryRepository(pool)
	workflowRepo := postgres.NewWorkflowRepository(pool)
	availabilityRepo := postgres.NewAvailabilityRepository(pool)

	searchSvc := app.NewSearchService(directoryRepo, slotCfg, log)
	workflowSvc := app.NewWorkflowService(workflowRepo, searchSvc, queue, clk, log,
		app.WithOfferWindow(cfg.OfferWindow))

	telegram := notify.NewTelegramClient(cfg.TelegramBotToken, log)
	notificationSvc := app.NewNotificationService(workflowRepo, telegram, log)

	googleCal := calendar.NewGoogleClient(calendar.StaticTokenSource{Token: cfg.GoogleAPIToken}, log)
	calendarSvc := app.NewCalendarSyncService(availabilityRepo, googleCal, clk, log)

	workerSrv := worker.NewServer(redisOpt, workflowSvc, notificationSvc, calendarSvc, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/orders", transporthttp.HandleCreateOrder(workflowSvc))
	mux.Handle("/orders/", transporthttp.HandleOrderActions(workflowSvc, workflowSvc))
	mux.Handle("/bookings/", transporthttp.HandleBookingResponse(workflowSvc))
	mux.Handle("/telegram/webhook", transporthttp.HandleTelegramWebhook(workflowSvc, telegram, log))
	mux.Handle("/", transporthttp.NotFoundHandler())

	server := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: transporthttp.RequestLogger(mux, log),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(stopCtx)
	g.Go(func() error {
		log.Info("api listening", zap.String("port", cfg.AppPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return workerSrv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server shutdown", zap.Error(err))
		}
		workerSrv.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("service error", zap.Error(err))
	}
	log.Info("stopped")
}
