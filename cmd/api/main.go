package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	_ "github.com/jhoicas/inventario-seriales/docs"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/events"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-seriales/internal/interfaces/http"
	"github.com/jhoicas/inventario-seriales/pkg/config"
	"github.com/jhoicas/inventario-seriales/pkg/jwt"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.StorageDriver).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer st.close()

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a Redis")
	}
	defer closeLocker()

	var publisher inventory.MovementPublisher = events.NewLogPublisher(log)
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.LedgerTopic), log)
		defer kp.Close()
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.LedgerTopic).Msg("publicando movimientos en Kafka")
	}

	engine := inventory.NewEngine(st.tx, locker, publisher, log, inventory.EngineOptions{
		MaxRetries: cfg.Inventory.MaxRetries,
	})
	unitSvc := inventory.NewUnitService(engine, st.repos, st.catalog, log)
	reservations := inventory.NewReservationManager(engine, st.repos, inventory.ReservationOptions{
		DefaultTTL: cfg.Inventory.ReservationDefaultTTL,
		MaxTTL:     cfg.Inventory.ReservationMaxTTL,
	}, log)
	transfers := inventory.NewTransferCoordinator(engine, st.repos, st.catalog, inventory.TransferOptions{
		RequireApproval: cfg.Inventory.TransferApproval,
		StuckAfter:      cfg.Inventory.TransferStuckAfter,
	}, log)
	claims := inventory.NewClaimProcessor(engine, unitSvc, st.repos, log)
	stock := inventory.NewStockQueryService(st.levels, st.repos.Units, reservations, nil)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Inventario Seriales API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "storage": cfg.App.StorageDriver})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Units:        unitSvc,
		Reservations: reservations,
		Transfers:    transfers,
		Claims:       claims,
		Stock:        stock,
		JWTSecret:    cfg.JWT.Secret,
	})

	if cfg.App.Env == "development" && cfg.JWT.Secret != "" {
		tok, err := jwt.Generate(cfg.JWT.Secret, jwt.Operator{ID: "dev-admin", Role: httpRouter.RoleAdmin},
			cfg.JWT.Issuer, time.Duration(cfg.JWT.Expiration)*time.Minute)
		if err == nil {
			log.Debug().Str("token", tok).Msg("token de desarrollo (admin)")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	g.Go(func() error {
		return inventory.NewSweeper(reservations, cfg.Inventory.SweepInterval, log).Start(gctx)
	})
	if cfg.Kafka.Enabled {
		reader := events.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.SalesTopic, cfg.Kafka.GroupID)
		listener := events.NewSalesListener(reader, unitSvc, log)
		g.Go(func() error { return listener.Start(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("servidor finalizado con error")
	}
	log.Info().Msg("aplicación detenida")
}

// storage repositorios del driver configurado.
type storage struct {
	tx      inventory.TxRunner
	repos   inventory.Repos
	catalog inventory.Catalog
	levels  repository.InventoryLevelRepository
	close   func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.App.StorageDriver == "memory" {
		store := memory.NewStore()
		// Catálogo mínimo para pruebas locales; los datos se pierden al reiniciar.
		store.AddProduct(&entity.Product{ID: "DEMO", SKU: "DEMO", Name: "Producto demo"})
		store.AddWarehouse(&entity.Warehouse{ID: "PRINCIPAL", Name: "Bodega principal", IsActive: true})
		log.Warn().Msg("almacenamiento en memoria: los datos no persisten")
		return &storage{
			tx:      store,
			repos:   store.Repos(),
			catalog: store.Catalog(),
			levels:  store.Levels(),
			close:   func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("conectado a PostgreSQL")
	return &storage{
		tx:      postgres.NewTxRunner(pool),
		repos:   postgres.NewRepos(pool),
		catalog: postgres.NewCatalog(pool),
		levels:  postgres.NewInventoryLevelRepository(pool),
		close:   pool.Close,
	}, nil
}

func newLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (inventory.UnitLocker, func(), error) {
	if !cfg.Redis.Enabled {
		return lock.NewKeyedMutex(), func() {}, nil
	}
	rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("candados distribuidos en Redis")
	locker := lock.NewRedisLocker(rdb, lock.RedisOptions{
		Prefix:  "inv:lock:",
		TTL:     cfg.Redis.LockTTL,
		Retries: cfg.Redis.LockRetries,
		Backoff: cfg.Redis.LockBackoff,
	}, log)
	return locker, func() { _ = rdb.Close() }, nil
}
