package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gov-cy/govcy-express-services-sub001/internal/audit"
	"github.com/gov-cy/govcy-express-services-sub001/internal/conditions"
	"github.com/gov-cy/govcy-express-services-sub001/internal/eligibility"
	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/multiplethings"
	"github.com/gov-cy/govcy-express-services-sub001/internal/notification"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/config"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/httpserver"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/logger"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/middleware"
	redisclient "github.com/gov-cy/govcy-express-services-sub001/internal/platform/redis"
	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/submission"
	httptransport "github.com/gov-cy/govcy-express-services-sub001/internal/transport/http"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and runs the server until a signal arrives.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	sites := site.NewRegistry(site.WithLogger(log))
	if err := sites.LoadDir(cfg.SitesDir); err != nil {
		return err
	}

	var health []httptransport.Option

	sessionStore, closeSessions, err := buildSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()
	if hc, ok := sessionStore.(interface{ Health(context.Context) error }); ok {
		health = append(health, httptransport.WithHealthCheck("sessions", hc.Health))
	}

	auditStore, closeAudit, err := buildAuditStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	if pinger, ok := auditStore.(interface{ Ping(context.Context) error }); ok {
		health = append(health, httptransport.WithHealthCheck("audit", pinger.Ping))
	}
	publisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(cfg.Audit.Buffer),
		audit.WithLogger(log),
	)
	defer publisher.Close()

	gw := gateway.New(
		gateway.WithLogger(log),
		gateway.WithMetrics(m),
		gateway.WithAttemptTimeout(cfg.Gateway.AttemptTimeout),
		gateway.WithMaxAttempts(cfg.Gateway.MaxAttempts),
		gateway.WithRetryDelay(cfg.Gateway.RetryDelay),
	)
	engine := conditions.New(conditions.WithLogger(log), conditions.WithMetrics(m))
	items := multiplethings.New(multiplethings.WithLogger(log))

	checker := eligibility.New(gw,
		eligibility.WithLogger(log),
		eligibility.WithMetrics(m),
		eligibility.WithAudit(publisher),
		eligibility.WithAllowSelfSigned(cfg.Gateway.AllowSelfSigned),
		eligibility.WithMaxAttempts(cfg.Gateway.MaxAttempts),
	)
	notifier := notification.New(gw,
		notification.WithLogger(log),
		notification.WithMetrics(m),
		notification.WithTimeout(cfg.Notification.Timeout),
		notification.WithAllowSelfSigned(cfg.Gateway.AllowSelfSigned),
		notification.WithBreaker(circuit.New("notification",
			circuit.WithFailureThreshold(cfg.Notification.FailureThreshold),
			circuit.WithCooldown(cfg.Notification.Cooldown),
		)),
	)
	defer notifier.Wait()
	pipeline := submission.New(gw,
		submission.WithLogger(log),
		submission.WithMetrics(m),
		submission.WithConditions(engine),
		submission.WithItems(items),
		submission.WithNotifier(notifier),
		submission.WithAudit(publisher),
		submission.WithAllowSelfSigned(cfg.Gateway.AllowSelfSigned),
		submission.WithMaxAttempts(cfg.Gateway.MaxAttempts),
	)

	opts := append([]httptransport.Option{
		httptransport.WithLogger(log),
		httptransport.WithMetrics(m),
		httptransport.WithConditions(engine),
		httptransport.WithItems(items),
	}, health...)
	handler := httptransport.New(sites, checker, pipeline, opts...)
	sessions := middleware.NewSessions(sessionStore, cfg.SessionCookieName,
		middleware.WithSessionTTL(cfg.SessionTTL),
		middleware.WithSecureCookie(cfg.SecureCookies),
		middleware.WithSessionLogger(log),
	)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", httptransport.NewRouter(handler, sessions))

	srv := httpserver.New(cfg.Addr, "govcy", router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "sites", sites.IDs())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildSessionStore uses Redis when configured, memory otherwise.
func buildSessionStore(ctx context.Context, cfg config.Config, log *slog.Logger) (session.Store, func(), error) {
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set, sessions kept in memory")
		return session.NewInMemory(session.WithMemoryTTL(cfg.SessionTTL)), func() {}, nil
	}
	store := &healthyRedisStore{
		RedisStore: session.NewRedis(client.Client, session.WithRedisTTL(cfg.SessionTTL)),
		client:     client,
	}
	return store, func() { _ = client.Close() }, nil
}

type healthyRedisStore struct {
	*session.RedisStore
	client *redisclient.Client
}

func (s *healthyRedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// buildAuditStore uses Kafka when brokers are configured, memory otherwise.
func buildAuditStore(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, audit events kept in memory")
		return audit.NewInMemoryStore(), func() {}, nil
	}
	store, err := audit.NewKafkaStore(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureTopic(ensureCtx, 3, 1); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}
