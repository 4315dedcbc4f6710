package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/address"
	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/cart"
	"github.com/wichananm65/marketplace-backend/internal/checkout"
	"github.com/wichananm65/marketplace-backend/internal/config"
	"github.com/wichananm65/marketplace-backend/internal/database"
	"github.com/wichananm65/marketplace-backend/internal/idempotency"
	"github.com/wichananm65/marketplace-backend/internal/inventory"
	"github.com/wichananm65/marketplace-backend/internal/lock"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/metrics"
	"github.com/wichananm65/marketplace-backend/internal/order"
	"github.com/wichananm65/marketplace-backend/internal/product"
	"github.com/wichananm65/marketplace-backend/internal/user"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configDir())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(logging.Options{
		Service:    cfg.App.Name,
		Env:        cfg.App.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close(logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
			}
			return apperr.Respond(c, logging.From(c), err)
		},
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + checkout.IdempotencyHeader,
		ExposeHeaders: "X-Request-Id",
	}))
	app.Use(logging.Middleware(logger))
	app.Use(metrics.Middleware())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", metrics.Handler())

	userService := user.NewService(st.users)
	userHandler := user.NewHandler(userService, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	productService := product.NewService(st.products)
	productHandler := product.NewHandler(productService, userService, cfg.App.AllowSeed)

	cartService := cart.NewService(st.carts, productService, st.locker, cfg.Checkout.LockTimeout)
	cartHandler := cart.NewHandler(cartService)

	addressService := address.NewService(st.addresses)
	addressHandler := address.NewHandler(addressService)

	orderHandler := order.NewHandler(order.NewService(st.orders))

	checkoutHandler := checkout.NewHandler(checkout.NewService(checkout.Deps{
		Carts:       cartService,
		Addresses:   addressService,
		Orders:      st.orders,
		Pricer:      inventory.NewReconciler(productService, cfg.Checkout.LookupConcurrency),
		UnitOfWork:  st.uow,
		Locker:      st.locker,
		Idempotency: st.idem,
		LockTimeout: cfg.Checkout.LockTimeout,
		Logger:      logger,
	}))

	userHandler.RegisterPublicRoutes(app)
	productHandler.RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.Auth.JWTSecret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apperr.Respond(c, logging.From(c), user.ErrUnauthorized)
		},
	}))

	userHandler.RegisterProtectedRoutes(app)
	productHandler.RegisterProtectedRoutes(app)
	cartHandler.RegisterProtectedRoutes(app)
	addressHandler.RegisterProtectedRoutes(app)
	checkoutHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.App.HTTPAddr, "postgres", cfg.UsesPostgres(), "redis", cfg.UsesRedis())
		errCh <- app.Listen(cfg.App.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	if err := app.ShutdownWithTimeout(cfg.HTTP.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func configDir() string {
	if d := os.Getenv("CONFIG_DIR"); d != "" {
		return d
	}
	return "configs"
}

// stores holds the storage side of the process: postgres when a database url
// is configured, memory otherwise, plus redis-backed coordination if set.
type stores struct {
	db  *sql.DB
	rdb *redis.Client

	users     user.Repository
	products  product.Repository
	carts     cart.Repository
	orders    order.Repository
	addresses address.Repository
	uow       checkout.UnitOfWork
	locker    lock.Locker
	idem      idempotency.Store
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{}

	if cfg.UsesPostgres() {
		db, err := database.Open(ctx, database.Options{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		st.db = db
		st.users = user.NewPostgresRepository(db)
		st.products = product.NewPostgresRepository(db)
		st.carts = cart.NewPostgresRepository(db)
		st.orders = order.NewPostgresRepository(db)
		st.addresses = address.NewPostgresRepository(db)
		st.uow = checkout.NewTxUnitOfWork(db)
	} else {
		logger.Warn("no database url configured, using in-memory storage")
		products := product.NewInMemoryRepository(product.SampleCatalog())
		carts := cart.NewInMemoryRepository()
		orders := order.NewInMemoryRepository()
		st.users = user.NewInMemoryRepository(nil)
		st.products = products
		st.carts = carts
		st.orders = orders
		st.addresses = address.NewInMemoryRepository(nil)
		st.uow = checkout.NewSagaUnitOfWork(products, orders, carts, logger)
	}

	if cfg.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			st.close(logger)
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		st.rdb = rdb
		st.locker = lock.NewRedis(rdb, 2*cfg.Checkout.LockTimeout)
		st.idem = idempotency.NewRedisStore(rdb, cfg.Checkout.IdempotencyTTL)
	} else {
		st.locker = lock.NewLocal()
		st.idem = idempotency.NewMemoryStore(cfg.Checkout.IdempotencyTTL)
	}
	return st, nil
}

func (s *stores) close(logger *slog.Logger) {
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			logger.Warn("redis close", "err", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Warn("database close", "err", err)
		}
	}
}
