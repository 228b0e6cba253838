// Command apengine boots the event-sourced accounts-payable transaction
// engine: the Postgres-backed event log, entity graph, rules engine,
// projection engine and its handlers, the intent pipeline and its
// handlers, and the HTTP/gRPC transports in front of them.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/entitygraph"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/grpcapi"
	"github.com/mcarvalho21/nova-sub000/internal/handlers/ap"
	"github.com/mcarvalho21/nova-sub000/internal/handlers/projections"
	"github.com/mcarvalho21/nova-sub000/internal/httpapi"
	"github.com/mcarvalho21/nova-sub000/internal/intentpipeline"
	"github.com/mcarvalho21/nova-sub000/internal/intentstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/projectionengine"
	"github.com/mcarvalho21/nova-sub000/internal/registry"
	"github.com/mcarvalho21/nova-sub000/internal/rulesengine"
	"github.com/mcarvalho21/nova-sub000/internal/snapshotsvc"
	"github.com/mcarvalho21/nova-sub000/internal/subscriptionsvc"
)

func main() {
	cfg, err := platform.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level, err := platform.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = platform.InfoLevel
	}

	logger, err := platform.NewZapLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry := &platform.Telemetry{
		ServiceName:     "apengine",
		ServiceVersion:  "v1",
		DeploymentEnv:   cfg.EnvName,
		CollectorTarget: cfg.OTLPCollectorTarget,
		Enabled:         cfg.OTLPEnabled,
	}
	if err := telemetry.Start(ctx); err != nil {
		logger.Fatalf("start telemetry: %v", err)
	}
	defer telemetry.Shutdown(ctx)

	replicaHost := cfg.ReplicaDBHost
	if replicaHost == "" {
		replicaHost = cfg.PrimaryDBHost
	}

	db := &platform.PostgresConnection{
		ConnectionStringPrimary: cfg.DSN(cfg.PrimaryDBHost),
		ConnectionStringReplica: cfg.DSN(replicaHost),
		PrimaryDBName:           cfg.PrimaryDBName,
		MigrationsSourceURL:     cfg.MigrationsPath,
		Logger:                  logger,
	}
	if err := db.Connect(); err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}

	mongoConn := &platform.MongoConnection{
		ConnectionStringSource: cfg.MongoURI,
		Database:               cfg.MongoDB,
		Logger:                 logger,
	}

	redisConn := &platform.RedisConnection{
		ConnectionStringSource: cfg.RedisHost,
		Logger:                 logger,
	}

	rabbitConn := &platform.RabbitMQConnection{
		ConnectionStringSource: cfg.RabbitMQURI,
		EventsExchange:         cfg.RabbitMQEventsExchange,
		ProjectionsQueue:       cfg.RabbitMQProjectionsQueue,
		Logger:                 logger,
	}

	cache := entitygraph.NewRedisCache(redisConn, logger)
	entities := entitygraph.New(db, cache)

	schemaRegistry := registry.New()
	schemaStore := registry.NewStore(db, schemaRegistry)
	if err := schemaStore.LoadAll(ctx); err != nil {
		logger.Warnf("load event type registry: %v", err)
	}

	auditMirror := eventstore.NewMongoAuditMirror(mongoConn, "event_audit")
	events := eventstore.NewStore(db, rabbitConn, auditMirror, schemaRegistry, entities)

	rulesStore := rulesengine.NewStore(db)
	rules, err := rulesStore.LoadAll(ctx)
	if err != nil {
		logger.Warnf("load rules: %v", err)
	}
	rulesEngine := rulesengine.NewEngine(rules)

	projRegistry := projectionengine.NewRegistry()
	projRegistry.Register(projections.NewVendorList())
	projRegistry.Register(projections.NewItemList())
	projRegistry.Register(projections.NewPOList())
	projRegistry.Register(projections.NewInvoiceList())
	projRegistry.Register(projections.NewAging())
	projRegistry.Register(projections.NewVendorBalance())
	projRegistry.Register(projections.NewGLPostings())

	subs := subscriptionsvc.New(db)

	deadLetterArchive := projectionengine.NewMongoDeadLetterArchive(mongoConn, "dead_letter_events")
	deadLetters := projectionengine.NewDeadLetterRepository(db, deadLetterArchive)
	projEngine := projectionengine.NewEngine(projRegistry, subs, deadLetters, logger)
	rebuilder := projectionengine.NewRebuilder(projEngine, events, db)
	snapshots := snapshotsvc.NewService(db, subs)

	subscriptionIDs, err := ensureSubscriptions(ctx, subs, projRegistry)
	if err != nil {
		logger.Fatalf("seed projection subscriptions: %v", err)
	}

	poller := projectionengine.NewPoller(projEngine, events, events, db, logger, 0, cfg.MaxDeliveryAttempts)
	go func() {
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("projection poller stopped: %v", err)
		}
	}()

	intents := intentstore.New(db)

	handlerDeps := ap.Deps{
		DB:          db,
		Events:      events,
		Entities:    entities,
		Rules:       rulesEngine,
		Projections: projEngine,
		Intents:     intents,
		Logger:      logger,
	}
	base := ap.NewBase(handlerDeps)

	pipeline := intentpipeline.New(logger)
	pipeline.Register(ap.NewVendorCreate(base))
	pipeline.Register(ap.NewVendorUpdate(base))
	pipeline.Register(ap.NewVendorAddContact(base))
	pipeline.Register(ap.NewVendorUpdateContact(base))
	pipeline.Register(ap.NewVendorRemoveContact(base))
	pipeline.Register(ap.NewItemCreate(base))
	pipeline.Register(ap.NewPOCreate(base))
	pipeline.Register(ap.NewInvoiceSubmit(base))
	pipeline.Register(ap.NewInvoiceApprove(base))
	pipeline.Register(ap.NewInvoiceReject(base))
	pipeline.Register(ap.NewInvoicePost(base))
	pipeline.Register(ap.NewInvoicePay(base))

	router := httpapi.NewRouter(logger, cfg.JWTSigningKey, httpapi.Handlers{
		Intents: httpapi.IntentHandler{Pipeline: pipeline, Intents: intents, DB: db},
		Projections: httpapi.ProjectionHandler{
			DB: db, Registry: projRegistry, Rebuilder: rebuilder, Snapshots: snapshots,
			SubscriptionIDs: subscriptionIDs,
		},
		Audit:         httpapi.AuditHandler{Events: events},
		Subscriptions: httpapi.SubscriptionHandler{Subscriptions: subs},
		EventTypes:    httpapi.EventTypeHandler{Registry: schemaRegistry},
	})

	grpcServer := grpc.NewServer()
	grpcapi.RegisterProjectionQueryServer(grpcServer, &grpcapi.Server{DB: db, Events: events})

	errCh := make(chan error, 2)

	go runHTTP(router, cfg.ServerAddress, logger, errCh)
	go runGRPC(grpcServer, cfg.GRPCAddress, logger, errCh)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Errorf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_ = router.ShutdownWithContext(shutdownCtx)
	grpcServer.GracefulStop()
	rabbitConn.Close()
}

func runHTTP(app *fiber.App, addr string, logger platform.Logger, errCh chan<- error) {
	logger.Infof("http server listening on %s", addr)

	if err := app.Listen(addr); err != nil {
		errCh <- fmt.Errorf("http server: %w", err)
	}
}

func runGRPC(server *grpc.Server, addr string, logger platform.Logger, errCh chan<- error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		errCh <- fmt.Errorf("listen grpc: %w", err)
		return
	}

	logger.Infof("grpc server listening on %s", addr)

	if err := server.Serve(listener); err != nil {
		errCh <- fmt.Errorf("grpc server: %w", err)
	}
}

// ensureSubscriptions seeds one internal subscription per registered
// projection type so the subscription cursor and the /rebuild endpoint
// always have something to resolve, even before any operator-managed
// subscription is created through the API.
func ensureSubscriptions(ctx context.Context, subs *subscriptionsvc.Service, reg *projectionengine.Registry) (map[string]string, error) {
	ids := make(map[string]string, len(reg.ProjectionTypes()))

	for _, projType := range reg.ProjectionTypes() {
		existing, err := subs.ListByProjectionType(ctx, nil, projType)
		if err != nil {
			return nil, err
		}

		if len(existing) > 0 {
			ids[projType] = existing[0].ID
			continue
		}

		sub, err := subs.Create(ctx, nil, subscriptionFor(projType, reg, 0))
		if err != nil {
			return nil, err
		}

		ids[projType] = sub.ID
	}

	return ids, nil
}

// subscriptionFor builds the internal projection subscription seeded at
// startup for a registered projection type, scoped to the event types its
// handlers declared.
func subscriptionFor(projType string, reg *projectionengine.Registry, batchSize int) projectiondom.Subscription {
	if batchSize <= 0 {
		batchSize = 100
	}

	return projectiondom.Subscription{
		ProjectionType: projType,
		SubscriberType: "internal",
		SubscriberID:   "apengine",
		EventTypes:     reg.EventTypesForProjection(projType),
		BatchSize:      batchSize,
	}
}
