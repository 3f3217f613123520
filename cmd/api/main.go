package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/config"
	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/database"
	"github.com/xavierca1/lead-dispatch/internal/infra/http/handlers"
	"github.com/xavierca1/lead-dispatch/internal/infra/http/middleware"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration/breaker"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration/kommo"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration/marketing"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration/propertycrm"
	"github.com/xavierca1/lead-dispatch/internal/infra/logger"
	"github.com/xavierca1/lead-dispatch/internal/infra/mail"
	"github.com/xavierca1/lead-dispatch/internal/infra/queue"
	"github.com/xavierca1/lead-dispatch/internal/infra/worker"
	"github.com/xavierca1/lead-dispatch/internal/usecase"
)

const envFile = ".env"

func main() {
	cfg, err := config.Load(envFile)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuração inválida", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Sinks
	sinks := buildSinks(cfg, log)

	// 2. Infra opcional: Postgres, RabbitMQ, SMTP
	var (
		queueOpts []queue.Option
		notifiers []queue.DeadLetterNotifier
		dbPinger  handlers.Pinger
		rmqState  handlers.ConnectionState
	)

	if cfg.DatabaseURL != "" {
		db, err := database.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("❌ Falha ao conectar no Postgres", zap.Error(err))
		}
		defer db.Close()

		repo := database.NewQueueRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("❌ Falha ao migrar tabela da fila", zap.Error(err))
		}
		queueOpts = append(queueOpts, queue.WithStore(repo))
		dbPinger = db
		log.Info("🗄️ Fila de retry persistida no Postgres")
	}

	if cfg.RabbitMQURL != "" {
		rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal("❌ Falha ao conectar no RabbitMQ", zap.Error(err))
		}
		defer rmq.Close()

		notifiers = append(notifiers, queue.NewDeadLetterProducer(rmq.Ch))
		rmqState = rmq.Conn
		log.Info("🐰 Dead-letter publicado no RabbitMQ", zap.String("queue", queue.DeadLetterQueue))
	}

	if cfg.Mail.Enabled() {
		notifiers = append(notifiers, mail.NewAlertSender(
			cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.User, cfg.Mail.AlertTo,
		))
	}
	queueOpts = append(queueOpts, queue.WithNotifiers(notifiers...))

	// 3. Fila de retry
	retryQueue, err := queue.NewRetryQueue(sinks, queue.Config{
		MaxAttempts:      cfg.Retry.MaxAttempts,
		MaxSize:          cfg.Retry.MaxQueueSize,
		DrainConcurrency: cfg.Retry.DrainConcurrency,
	}, log, queueOpts...)
	if err != nil {
		log.Fatal("❌ Falha ao criar fila de retry", zap.Error(err))
	}
	defer retryQueue.Close()

	if n, err := retryQueue.Restore(ctx); err != nil {
		log.Error("❌ Falha ao restaurar fila de retry", zap.Error(err))
	} else if n > 0 {
		log.Info("♻️ Fila de retry restaurada", zap.Int("entries", n))
	}

	// 4. Worker de drain
	drainWorker := worker.NewDrainWorker(
		retryQueue, cfg.Retry.DrainInterval, cfg.Retry.DrainMaxInterval, cfg.Retry.DrainBudget, log,
	)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		drainWorker.Start(ctx)
	}()

	// 5. UseCase e flags
	flags := config.NewFlagSource(envFile, cfg.Flags, sinks, log)
	go reloadFlagsOnSIGHUP(ctx, flags)

	submitLead := usecase.NewSubmitLeadUseCase(sinks, flags, retryQueue, usecase.NewDataEnricher(), log)

	// 6. Handlers e router
	router := newRouter(routerDeps{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(ctx, cfg.Server.RateLimitPerMinute),
		Leads:       handlers.NewLeadHandler(submitLead, log),
		Queue:       handlers.NewQueueHandler(retryQueue, cfg.Retry.DrainBudget, log),
		Health:      handlers.NewHealthHandler(sinks, retryQueue, dbPinger, rmqState),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("🔥 Lead dispatch rodando", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Servidor HTTP falhou", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Desligando servidor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("❌ Erro no shutdown do servidor", zap.Error(err))
	}
	<-workerDone
}

func buildSinks(cfg *config.Config, log *zap.Logger) *entity.SinkRegistry {
	sinks := entity.NewSinkRegistry()
	bcfg := breaker.DefaultConfig()

	if cfg.PropertyCRM.URL != "" {
		client := propertycrm.NewClient(cfg.PropertyCRM.URL, cfg.PropertyCRM.User, cfg.PropertyCRM.Password)
		sinks.Register(breaker.Wrap(client, bcfg, log), cfg.PropertyCRM.Timeout)
	}
	if cfg.Kommo.URL != "" {
		client := kommo.NewClient(kommo.Config{
			BaseURL:    cfg.Kommo.URL,
			APIToken:   cfg.Kommo.APIToken,
			PipelineID: cfg.Kommo.PipelineID,
			StatusID:   cfg.Kommo.StatusID,
		})
		sinks.Register(breaker.Wrap(client, bcfg, log), cfg.Kommo.Timeout)
	}
	if cfg.Marketing.URL != "" {
		client := marketing.NewClient(cfg.Marketing.URL, cfg.Marketing.APIKey)
		sinks.Register(breaker.Wrap(client, bcfg, log), cfg.Marketing.Timeout)
	}

	for _, s := range sinks.All() {
		log.Info("🔌 Sink registrado", zap.String("sink", s.ID()), zap.Duration("timeout", sinks.Timeout(s.ID())))
	}
	return sinks
}

func reloadFlagsOnSIGHUP(ctx context.Context, flags *config.FlagSource) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			flags.Reload()
		}
	}
}
