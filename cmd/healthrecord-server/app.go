package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/config"
	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/exchange"
	"github.com/familyhealth/healthrecord/internal/domain/identity"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/interop"
	"github.com/familyhealth/healthrecord/internal/platform/blobstore"
	"github.com/familyhealth/healthrecord/internal/platform/db"
	"github.com/familyhealth/healthrecord/internal/platform/events"
	"github.com/familyhealth/healthrecord/internal/platform/feed"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/internal/platform/lock"
)

// app holds the wired services shared by serve, export and import.
type app struct {
	pool   *pgxpool.Pool
	tables *terminology.Tables

	patientRepo identity.PatientRepository
	obsRepo     clinical.ObservationRepository
	condRepo    clinical.ConditionRepository
	medRepo     medication.Repository
	recordRepo  exchange.Repository

	patients    *identity.Service
	clinical    *clinical.Service
	medications *medication.Service
	records     *exchange.Service
	pipeline    *interop.Service
	feed        *feed.Hub

	closers []func()
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")

	a := &app{
		pool:        pool,
		tables:      terminology.Default(),
		patientRepo: identity.NewPatientRepo(pool),
		obsRepo:     clinical.NewObservationRepo(pool),
		condRepo:    clinical.NewConditionRepo(pool),
		medRepo:     medication.NewRepo(pool),
		recordRepo:  exchange.NewRepo(pool),
		feed:        feed.NewHub(logger),
	}
	a.closers = append(a.closers, pool.Close)

	a.patients = identity.NewService(a.patientRepo)
	a.clinical = clinical.NewService(a.obsRepo, a.condRepo)
	a.medications = medication.NewService(a.medRepo)
	a.records = exchange.NewService(a.recordRepo)

	locker, err := a.newLocker(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	archive, err := newArchive(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	broker, err := a.newPublisher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher := events.Fanout{broker, a.feed}

	stores := interop.Stores{
		Patients:     a.patientRepo,
		Observations: a.obsRepo,
		Conditions:   a.condRepo,
		Medications:  a.medRepo,
		Records:      a.recordRepo,
	}
	codec := fhir.NewCodec()
	exporter := interop.NewExporter(stores, codec, a.tables).WithSource(cfg.ExportSource)
	importer := interop.NewImporter(stores, codec, a.tables, logger)
	a.pipeline = interop.NewService(exporter, importer, locker, archive, publisher, logger)
	return a, nil
}

// newLocker uses Redis when REDIS_URL is set, else an in-process lock that
// only guards a single instance.
func (a *app) newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, import locks are process-local")
		return lock.NewLocal(cfg.ImportLockTTL), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	logger.Info().Msg("connected to redis")
	return lock.NewRedis(client, cfg.ImportLockTTL), nil
}

// newArchive returns nil when no object store is configured.
func newArchive(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blobstore.Store, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	store, err := blobstore.NewMinio(ctx, blobstore.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}
	logger.Info().Str("bucket", cfg.MinioBucket).Msg("export archive enabled")
	return store, nil
}

func (a *app) newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.Noop{}, nil
	}
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	pub, err := events.NewAMQP(conn, cfg.AMQPExchangeQueue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() {
		_ = pub.Close()
		_ = conn.Close()
	})
	logger.Info().Str("queue", cfg.AMQPExchangeQueue).Msg("publishing exchange events")
	return pub, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
