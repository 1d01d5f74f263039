package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/intellagent/scheduling-service/internal/api/router"
	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/internal/booking"
	"github.com/intellagent/scheduling-service/internal/chat"
	appconfig "github.com/intellagent/scheduling-service/internal/config"
	"github.com/intellagent/scheduling-service/internal/crm"
	"github.com/intellagent/scheduling-service/internal/http/handlers"
	"github.com/intellagent/scheduling-service/internal/observability/metrics"
	"github.com/intellagent/scheduling-service/internal/schedule"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling service",
		"env", cfg.Env,
		"port", cfg.Port,
		"crm_base_url", cfg.CRMBaseURL,
	)

	schedMetrics := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)
	autoMetrics := metrics.NewAutomationMetrics(prometheus.DefaultRegisterer)

	crmClient := crm.NewClient(cfg.CRMBaseURL,
		crm.WithHTTPClient(&http.Client{Timeout: cfg.CRMTimeout}),
		crm.WithLogger(logger),
	)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, transcripts disabled", "addr", cfg.RedisAddr, "error", err)
			_ = redisClient.Close()
			redisClient = nil
		}
	}

	sequencer := automation.NewSequencer(logger,
		automation.WithClearDelay(cfg.AutomationClearDelay),
		automation.WithMetrics(autoMetrics),
	)
	defer sequencer.Close()

	calculator := schedule.NewCalculator(crmClient, schedMetrics, logger)
	manager := booking.NewManager(crmClient, calculator, sequencer, cfg.DefaultTimezone, booking.FillConfig{
		SlotWaitAttempts: cfg.SlotWaitAttempts,
		SlotWaitInterval: cfg.SlotWaitInterval,
		TypingMinDelay:   cfg.TypingMinDelay,
		TypingMaxDelay:   cfg.TypingMaxDelay,
	}, schedMetrics, logger)

	transcripts := chat.NewTranscriptStore(redisClient, cfg.TranscriptMaxMessages)
	chatService := chat.NewService(crmClient, sequencer, transcripts, logger)
	chatHandler := chat.NewHandler(chatService, sequencer, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     handlers.NewBookingHandler(manager, logger),
		ChatHandler:        chatHandler,
		NewsletterHandler:  handlers.NewNewsletterHandler(crmClient, logger),
		AutomationHandler:  handlers.NewAutomationHandler(sequencer, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRateLimit:      cfg.ChatRateLimit,
		ChatRateBurst:      cfg.ChatRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // chat turns and websockets are slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server stopped")
}
