// Command server runs the consent-gated event delivery relay: it accepts
// events from producers, holds them while consent is pending, and forwards
// them to the collection endpoint once a decision lands.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/audit"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/consent"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/dedup"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/forwarder"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/identity"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/pipeline"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/config"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/httpserver"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/logger"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
	platformredis "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/redis"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/tracing"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/queue"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/token"
	httptransport "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/transport/http"
)

const dedupSweepInterval = 5 * time.Minute

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	stopTracing, err := tracing.Init("tagging-relay", cfg.TraceStdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stopTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		db   *sql.DB
		pool *pgxpool.Pool
	)
	if cfg.PostgresDSN != "" {
		if db, err = sql.Open("postgres", cfg.PostgresDSN); err != nil {
			return err
		}
		defer db.Close()
		if pool, err = pgxpool.New(ctx, cfg.PostgresDSN); err != nil {
			return err
		}
		defer pool.Close()
	}

	// Token codec: a missing or malformed key drops the transport to plain
	// envelopes and pushes credentials down the encoder ladder.
	codec, err := token.New(cfg.EncryptionKey, token.WithTTL(cfg.TokenTTL))
	if err != nil {
		log.Warn("token codec unavailable, sending plain envelopes", slog.Any("error", err))
		codec = nil
	}
	ladder := token.NewLadder(codec, log, m)

	forwardOpts := []forwarder.Option{forwarder.WithMetrics(m)}
	if codec != nil {
		forwardOpts = append(forwardOpts, forwarder.WithCodec(codec))
	}
	if cfg.APICredential != "" {
		forwardOpts = append(forwardOpts, forwarder.WithCredential(cfg.APICredential, ladder))
	}
	fwd := forwarder.New(cfg.EndpointURL, log, forwardOpts...)

	// Consent outlives all other state; it prefers the most durable backend
	// available.
	var consentStore consent.Store
	switch {
	case db != nil:
		consentStore = consent.NewPostgresStore(db)
	case redisClient != nil:
		consentStore = consent.NewRedisStore(redisClient.Client, cfg.ConsentRetention)
	default:
		consentStore = consent.NewInMemoryStore()
	}

	machineOpts := []consent.MachineOption{}
	if cfg.ConsentTimeout > 0 {
		timeoutStatus := consent.StatusDenied
		if cfg.TimeoutAction == config.TimeoutActionGrant {
			timeoutStatus = consent.StatusGranted
		}
		machineOpts = append(machineOpts, consent.WithTimeout(cfg.ConsentTimeout, timeoutStatus))
	}
	machine := consent.NewMachine(consentStore, log, machineOpts...)

	var mirror queue.MirrorStore = queue.NewInMemoryMirror()
	var dedupStore dedup.Store = dedup.NewInMemoryStore()
	var identityStore identity.Store = identity.NewInMemoryStore()
	if redisClient != nil {
		mirror = queue.NewRedisMirror(redisClient.Client, cfg.QueueTTL)
		dedupStore = dedup.NewRedisStore(redisClient.Client)
		identityStore = identity.NewRedisStore(redisClient.Client, cfg.Retention)
	}

	q := queue.New(mirror, log,
		queue.WithTTL(cfg.QueueTTL),
		queue.WithMetrics(m),
	)
	ledger := dedup.NewLedger(dedupStore, log,
		dedup.WithTTL(cfg.DedupTTL),
		dedup.WithMetrics(m),
	)
	identitySvc := identity.NewService(identityStore, log,
		identity.WithIdleGap(cfg.SessionIdleGap),
	)

	trail := audit.NewTrail(log, 256)

	var auditStore audit.Store = audit.NewInMemoryStore(1024)
	if pool != nil {
		auditStore = audit.NewPostgresStore(pool)
	}
	var sink audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		if sink, err = audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			return err
		}
		defer sink.Close()
	}
	auditWorker := audit.NewWorker(auditStore, sink, trail.Inbox(), log)

	pipe := pipeline.New(machine, q, ledger, fwd, log,
		pipeline.WithTrail(trail),
		pipeline.WithMetrics(m),
	)

	// Restore the mirrored queue before the machine start so a persisted
	// decision flushes what survived the restart.
	if err := q.Restore(ctx); err != nil {
		log.Warn("queue restore failed", slog.Any("error", err))
	}
	if err := machine.Start(ctx); err != nil {
		return err
	}

	handler := httptransport.New(pipe, machine, identitySvc, log)
	router := httptransport.NewRouter(handler, log, httptransport.RouterConfig{
		IngestSecretHash: cfg.IngestSecretHash,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return auditWorker.Run(ctx)
	})

	group.Go(func() error {
		ticker := time.NewTicker(dedupSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				ledger.Sweep(ctx)
			}
		}
	})

	if redisClient != nil {
		scanner := consent.NewScanner(log, []consent.SignalSource{
			consent.NewRedisSignalSource(redisClient.Client),
		})
		group.Go(func() error {
			scanner.Run(ctx, func(status consent.Status, source string) {
				if err := machine.Resolve(ctx, status, consent.ReasonPassiveSignal, source); err != nil {
					log.Warn("passive signal resolution failed", slog.Any("error", err))
				}
			})
			return nil
		})
	}

	group.Go(func() error {
		log.Info("server listening",
			slog.String("addr", cfg.Addr),
			slog.Bool("encrypted_transport", codec != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
