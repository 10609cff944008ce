package app

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	libredis "github.com/juandiegombr/daw.pi.iiava/backend/libs/redis"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/alerting"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/config"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/db"
	httpserver "github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/http"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/http/handlers"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/http/middleware"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/live"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/mqtt"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/password"
	redisstore "github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/redis"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

// App wires monitor service dependencies.
type App struct {
	server *httpserver.Server
	hub    *live.Hub
	mqtt   *mqtt.Subscriber
	db     *sql.DB
	redis  *goredis.Client
	logger *zap.Logger
}

type stores struct {
	sensors    service.SensorRepository
	datapoints service.DatapointRepository
	alerts     service.AlertRuleRepository
	users      service.UserRepository
}

// New builds application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	st, err := a.openStores(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	revoked, err := a.openRevocations(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.hub = live.NewHub(cfg.Live.BufferSize, logger)
	evaluator := alerting.NewEvaluator(cfg.Alerts.EqualityTolerance)

	sensorSvc := service.NewSensorService(st.sensors, st.datapoints, st.alerts, evaluator, logger)
	ingestSvc := service.NewIngestService(st.sensors, st.datapoints, st.alerts, evaluator, a.hub, logger)
	alertSvc := service.NewAlertService(st.alerts, st.sensors, logger)
	tokenSvc := service.NewTokenService(cfg.Auth.JWTSecret, cfg.JWTExpiration())
	authSvc := service.NewAuthService(st.users, password.NewBcryptHasher(bcrypt.DefaultCost), tokenSvc, revoked, logger)

	streams := live.StreamOptions{
		WriteTimeout:      cfg.Live.WriteTimeout,
		HeartbeatInterval: cfg.Live.HeartbeatInterval,
	}

	var pinger handlers.Pinger
	if a.db != nil {
		pinger = a.db
	}

	routes := httpserver.Routes{
		Sensors:   handlers.NewSensorsHandlers(sensorSvc, ingestSvc, logger),
		Alerts:    handlers.NewAlertsHandlers(alertSvc, logger),
		Auth:      handlers.NewAuthHandlers(authSvc, handlers.CookieOptions{Name: cfg.Auth.CookieName, Secure: cfg.Auth.SecureCookie}, logger),
		Events:    live.NewSSEHandler(a.hub, streams, logger),
		WebSocket: live.NewWSHandler(a.hub, streams, originChecker(cfg.HTTP.CORSOrigins), logger),
		Health:    handlers.NewHealthHandler(pinger),
		Metrics:   promhttp.Handler(),
	}

	opts := httpserver.RouterOptions{
		BasePath:    cfg.HTTP.BasePath,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	}
	if cfg.Auth.RequireAuth {
		opts.RequireAuth = middleware.AuthMiddleware(authSvc, cfg.Auth.CookieName)
	}

	router := httpserver.NewRouter(routes, opts)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger, a.hub.Shutdown)

	if strings.TrimSpace(cfg.MQTT.Broker) != "" {
		a.mqtt = mqtt.NewSubscriber(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, ingestSvc, nil, logger)
	}

	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.Database.Driver == config.DriverMemory {
		a.logger.Warn("using in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{
			sensors:    mem.Sensors(),
			datapoints: mem.Datapoints(),
			alerts:     mem.Alerts(),
			users:      mem.Users(),
		}, nil
	}

	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return stores{}, err
	}
	a.db = sqlDB

	if cfg.Database.AutoMigrate {
		if err := db.MigrateUp(sqlDB, a.logger); err != nil {
			return stores{}, err
		}
	}

	return stores{
		sensors:    repository.NewSensorRepository(sqlDB),
		datapoints: repository.NewDatapointRepository(sqlDB),
		alerts:     repository.NewAlertRepository(sqlDB),
		users:      repository.NewUserRepository(sqlDB),
	}, nil
}

func (a *App) openRevocations(ctx context.Context, cfg *config.Config) (service.RevocationStore, error) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return redisstore.NewMemoryRevokedTokens(), nil
	}
	client, err := libredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return redisstore.NewRevokedTokens(client), nil
}

// originChecker accepts WebSocket upgrades from the configured CORS origins.
// Without configured origins only same-host requests are accepted.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[origin] {
			return true
		}
		return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
	}
}

// Run starts the MQTT subscriber, when configured, and serves HTTP until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.mqtt != nil {
		if err := a.mqtt.Start(ctx); err != nil {
			return err
		}
		defer a.mqtt.Stop()
	}
	return a.server.Run(ctx)
}

// Close releases acquired resources.
func (a *App) Close() {
	if a.hub != nil {
		a.hub.Shutdown()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
