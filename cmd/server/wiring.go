package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	jwttoken "ghostauth/internal/jwt_token"
	"ghostauth/internal/platform/config"
	"ghostauth/internal/platform/kafka"
	platformmetrics "ghostauth/internal/platform/metrics"
	platformmw "ghostauth/internal/platform/middleware"
	"ghostauth/internal/platform/postgres"
	"ghostauth/internal/platform/redis"
	rlmetrics "ghostauth/internal/ratelimit/metrics"
	ratelimit "ghostauth/internal/ratelimit/middleware"
	"ghostauth/internal/ratelimit/models"
	"ghostauth/internal/ratelimit/store/bucket"
	"ghostauth/internal/trust/handler"
	trustmetrics "ghostauth/internal/trust/metrics"
	"ghostauth/internal/trust/ports"
	"ghostauth/internal/trust/service"
	"ghostauth/internal/trust/store/profile"
	"ghostauth/internal/trust/store/sessionlog"
	"ghostauth/pkg/platform/audit"
	"ghostauth/pkg/platform/audit/publisher"
	auditmemory "ghostauth/pkg/platform/audit/store/memory"
	auditpostgres "ghostauth/pkg/platform/audit/store/postgres"
	"ghostauth/pkg/platform/httputil"
	"ghostauth/pkg/platform/middleware/metadata"
	"ghostauth/pkg/platform/middleware/requesttime"
)

const auditBufferSize = 1024

// infrastructure holds the optional external connections. Each is nil when
// not configured.
type infrastructure struct {
	DB    *sql.DB
	Redis *redis.Client
	Kafka *kgo.Client
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		infra.DB = db
		if err := postgres.Migrate(db); err != nil {
			infra.Close()
			return nil, err
		}
		log.Info("postgres ready, migrations applied")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Redis = client

	kc, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		infra.Close()
		return nil, err
	}
	if kc != nil {
		infra.Kafka = kc
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.SessionTopic, cfg.Kafka.Partitions); err != nil {
			infra.Close()
			return nil, err
		}
	}
	return infra, nil
}

func (i *infrastructure) Close() {
	if i.Kafka != nil {
		i.Kafka.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		_ = i.DB.Close()
	}
}

// application is the assembled HTTP surface.
type application struct {
	Router    http.Handler
	publisher *publisher.Publisher
}

// Close drains queued audit events.
func (a *application) Close() {
	a.publisher.Close()
}

func build(cfg config.Config, infra *infrastructure, log *slog.Logger) (*application, error) {
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if infra.DB != nil {
		auditStore = auditpostgres.New(infra.DB)
	}
	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)

	profiles, err := profileStore(cfg, infra)
	if err != nil {
		auditPublisher.Close()
		return nil, err
	}

	svc, err := service.New(profiles, sessionLog(cfg, infra),
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(trustmetrics.New()),
		service.WithThresholds(cfg.Scoring.AdaptThreshold, cfg.Scoring.LowTrustThreshold),
	)
	if err != nil {
		auditPublisher.Close()
		return nil, err
	}

	limiter := rateLimiter(cfg, infra, log, auditPublisher)

	var validator platformmw.TokenValidator
	if cfg.Server.JWTSigningKey != "" {
		validator = jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		auditPublisher.Close()
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(platformmw.RequestID)
	r.Use(metadata.NewResolver(proxies).ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(platformmetrics.New().Middleware)

	r.Get("/health", healthHandler(infra))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		}
		r.Use(limiter.RateLimit)
		r.Use(platformmw.OptionalBearer(validator, log))
		handler.New(svc, log, auditPublisher).Register(r)
	})

	return &application{Router: r, publisher: auditPublisher}, nil
}

func profileStore(cfg config.Config, infra *infrastructure) (ports.ProfileStore, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		if infra.Redis == nil {
			return nil, fmt.Errorf("profile backend %q: redis not connected", cfg.Backend)
		}
		return profile.NewRedisStore(infra.Redis.Client), nil
	case config.BackendPostgres:
		if infra.DB == nil {
			return nil, fmt.Errorf("profile backend %q: postgres not connected", cfg.Backend)
		}
		return profile.NewPostgres(infra.DB), nil
	default:
		return profile.NewInMemoryStore(), nil
	}
}

// sessionLog persists records in postgres when available and mirrors them to
// kafka when brokers are configured.
func sessionLog(cfg config.Config, infra *infrastructure) ports.SessionLog {
	var primary ports.SessionLog = sessionlog.NewInMemoryStore()
	if infra.DB != nil {
		primary = sessionlog.NewPostgres(infra.DB)
	}
	if infra.Kafka == nil {
		return primary
	}
	return sessionlog.NewMulti(primary, sessionlog.NewKafkaSink(infra.Kafka, cfg.Kafka.SessionTopic))
}

// rateLimiter shares budgets through redis when connected and falls back to
// per-replica buckets while redis is failing.
func rateLimiter(cfg config.Config, infra *infrastructure, log *slog.Logger, p *publisher.Publisher) *ratelimit.Middleware {
	local := bucket.New()
	opts := []ratelimit.Option{
		ratelimit.WithAuditPublisher(p),
		ratelimit.WithMetrics(rlmetrics.New()),
	}
	var primary ratelimit.BucketStore = local
	if infra.Redis != nil {
		primary = bucket.NewRedisBucketStore(infra.Redis.Client)
		opts = append(opts, ratelimit.WithFallback(local))
	}
	return ratelimit.New(primary, models.PerMinute(cfg.RateLimit.PerMinute), log, opts...)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(infra *infrastructure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		check := func(name string, err error) {
			if err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				return
			}
			resp.Checks[name] = "ok"
		}
		if infra.DB != nil {
			check("postgres", infra.DB.PingContext(ctx))
		}
		if infra.Redis != nil {
			check("redis", infra.Redis.Health(ctx))
		}
		if infra.Kafka != nil {
			check("kafka", infra.Kafka.Ping(ctx))
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
