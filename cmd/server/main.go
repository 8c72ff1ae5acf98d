package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "profilereg/internal/jwt_token"
	"profilereg/internal/ledger"
	"profilereg/internal/platform/config"
	"profilereg/internal/platform/httpserver"
	"profilereg/internal/platform/logger"
	"profilereg/internal/platform/metrics"
	platformredis "profilereg/internal/platform/redis"
	"profilereg/internal/platform/tracing"
	"profilereg/internal/profile/handler"
	"profilereg/internal/profile/service"
	"profilereg/internal/profile/store"
	audit "profilereg/pkg/platform/audit"
	"profilereg/pkg/platform/audit/breaker"
	"profilereg/pkg/platform/audit/publisher"
	auditkafka "profilereg/pkg/platform/audit/store/kafka"
	auditmemory "profilereg/pkg/platform/audit/store/memory"
	"profilereg/pkg/platform/httputil"
	"profilereg/pkg/platform/middleware/admin"
	"profilereg/pkg/platform/origin"
)

const (
	tokenIssuer   = "profilereg"
	tokenAudience = "profilereg-api"
	tokenTTL      = 24 * time.Hour
)

type infra struct {
	cfg      config.Server
	log      *slog.Logger
	db       *sql.DB
	redis    *platformredis.Client
	kafka    *auditkafka.Store
	events   *publisher.Publisher
	registry *service.Service
	ledger   *ledger.Memory
	jwt      *jwttoken.JWTService
	access   handler.Access
}

func main() {
	// "hash-admin-token <token>" prints a value for ADMIN_TOKEN_HASH.
	if len(os.Args) == 3 && os.Args[1] == "hash-admin-token" {
		hash, err := admin.HashToken(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash admin token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1:]); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger, args []string) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("flush traces", "error", err)
		}
	}()

	in, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	// "token <account-or-alias>" prints a signed bearer token and exits.
	if len(args) == 2 && args[0] == "token" {
		return printToken(ctx, in, args[1])
	}

	r := chi.NewRouter()
	r.Get("/health", in.health)
	r.Handle("/metrics", promhttp.Handler())
	handler.New(in.registry, in.ledger, in.events, in.access, log).Register(r)

	log.Info("starting profile registry",
		"addr", cfg.Addr,
		"store", cfg.StoreKind,
		"admin_token_hashed", cfg.AdminTokenHash != "",
		"slash_sink", cfg.SlashSink,
		"max_length", cfg.MaxLength,
		"deposit", cfg.DepositValue,
		"force_set_reserves", cfg.ForceSetReserves,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)
	return httpserver.Serve(ctx, httpserver.New(cfg.Addr, otelhttp.NewHandler(r, "profilereg")), cfg.ShutdownTimeout, log)
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			in.close()
		}
	}()

	admins, err := cfg.AdminAccountIDs()
	if err != nil {
		return nil, err
	}
	aliases, err := cfg.AliasIDs()
	if err != nil {
		return nil, err
	}
	in.jwt = jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
	adminToken := admin.PlainToken(cfg.AdminToken)
	if cfg.AdminTokenHash != "" {
		adminToken = admin.HashedToken(cfg.AdminTokenHash)
	}
	in.access = handler.Access{
		Validator:  in.jwt,
		AdminToken: adminToken,
		Authorizer: origin.RootOrAccounts(admins...),
		Resolver:   origin.NewAliases(aliases),
	}

	// Backends are independent; bring them up together.
	var (
		profileStore service.Store
		storeTx      service.StoreTx
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profileStore, storeTx, err = in.openStore(gctx)
		return err
	})
	g.Go(func() error {
		return in.openKafka(gctx)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var eventStore audit.Store = auditmemory.NewInMemoryStore()
	if in.kafka != nil {
		stream := breaker.New(in.kafka,
			breaker.WithMetrics(breaker.NewMetrics(prometheus.DefaultRegisterer)),
			breaker.WithLogger(log),
		)
		eventStore = audit.Fanout(eventStore, stream)
	}
	publisherOpts := []publisher.Option{publisher.WithLogger(log)}
	if cfg.EventBuffer > 0 {
		publisherOpts = append(publisherOpts, publisher.WithAsyncBuffer(cfg.EventBuffer))
	}
	in.events = publisher.NewPublisher(eventStore, publisherOpts...)

	in.ledger = ledger.NewMemory()
	warnEphemeralLedger(cfg, log)
	var sink service.SlashSink = ledger.NewBurnSink(in.ledger, log)
	if cfg.SlashSink == config.SinkTreasury {
		sink = ledger.NewTreasurySink(in.ledger, cfg.Treasury(), log)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(in.events),
		service.WithMetrics(metrics.New()),
	}
	if storeTx != nil {
		opts = append(opts, service.WithTx(storeTx))
	}
	in.registry, err = service.New(service.Config{
		MaxLength:         cfg.MaxLength,
		DepositValue:      cfg.DepositValue,
		ReserveOnForceSet: cfg.ForceSetReserves,
	}, profileStore, in.ledger, sink, in.access.Authorizer, in.access.Resolver, opts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return in, nil
}

// warnEphemeralLedger flags a durable entry store paired with the in-process
// ledger: entries survive a restart, their reservations do not.
func warnEphemeralLedger(cfg config.Server, log *slog.Logger) bool {
	if cfg.StoreKind == config.StoreMemory {
		return false
	}
	log.Warn("entry store outlives the in-process ledger; reservations reset on restart",
		"store", cfg.StoreKind,
	)
	return true
}

// openStore returns the configured entry store. A nil StoreTx leaves the
// service on its in-process sharded lock.
func (in *infra) openStore(ctx context.Context) (service.Store, service.StoreTx, error) {
	switch in.cfg.StoreKind {
	case config.StorePostgres:
		db, err := sql.Open(in.cfg.DatabaseDriver, in.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		in.db = db
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		pgStore := store.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return pgStore, newProfilePostgresTx(db, pgStore), nil
	case config.StoreRedis:
		client, err := platformredis.New(ctx, in.cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, errors.New("redis store selected but REDIS_URL is empty")
		}
		in.redis = client
		return store.NewRedisStore(client.Client), nil, nil
	default:
		return store.NewInMemoryStore(), nil, nil
	}
}

func (in *infra) openKafka(ctx context.Context) error {
	if len(in.cfg.Kafka.Brokers) == 0 {
		return nil
	}
	k, err := auditkafka.New(in.cfg.Kafka.Brokers, in.cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	in.kafka = k
	return auditkafka.EnsureTopic(ctx, k.Client(), in.cfg.Kafka.Topic, in.cfg.Kafka.Partitions, in.cfg.Kafka.Replicas)
}

// health reports each configured backend.
func (in *infra) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	report := func(name string, err error) {
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}
	if in.db != nil {
		report("postgres", in.db.PingContext(ctx))
	}
	if in.redis != nil {
		report("redis", in.redis.Health(ctx))
	}
	if in.kafka != nil {
		report("kafka", in.kafka.Health(ctx))
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (in *infra) close() {
	if in.events != nil {
		in.events.Close()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

func printToken(ctx context.Context, in *infra, lookup string) error {
	account, err := in.access.Resolver.Resolve(ctx, lookup)
	if err != nil {
		return err
	}
	token, err := in.jwt.GenerateAccessToken(account, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
