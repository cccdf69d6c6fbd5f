package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/command"
	"github.com/eaglebank/ledger-service/internal/config"
	"github.com/eaglebank/ledger-service/internal/events"
	"github.com/eaglebank/ledger-service/internal/handler"
	"github.com/eaglebank/ledger-service/internal/lock"
	"github.com/eaglebank/ledger-service/internal/middleware"
	"github.com/eaglebank/ledger-service/internal/query"
	"github.com/eaglebank/ledger-service/internal/registry"
	"github.com/eaglebank/ledger-service/internal/store"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	var (
		accounts  store.AccountStore
		txnLog    store.TransactionLog
		uow       store.UnitOfWork
		locker    lock.KeyLocker
		viewCache cache.Cache
		users     registry.UserRegistry
		publisher command.EventPublisher

		db          *sql.DB
		redisClient *redis.Client
	)

	if cfg.DevMode {
		logger.Info("running in dev mode with in-memory store, lock and cache")
		memStore := store.NewMemoryStore()
		accounts, txnLog, uow = memStore, memStore, memStore
		locker = lock.NewMemoryLocker()
		viewCache = cache.NewMemoryCache()
		users = registry.NewStaticUserRegistry(cfg.DevUserIDs...)
	} else {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}

		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.Error(err))
		}

		accounts = store.NewPostgresAccountStore(db)
		txnLog = store.NewPostgresTransactionLog(db)
		uow = store.NewPostgresUnitOfWork(db)
		locker = lock.NewRedisLocker(redisClient, logger)
		viewCache = cache.NewRedisCache(redisClient, logger)
		users = registry.NewPostgresUserRegistry(db)
		publisher = events.NewPublisher(redisClient, logger)
	}

	commandSvc := command.NewLedgerCommandService(
		accounts, uow, locker, viewCache, users, publisher, logger,
		cfg.LockWait, cfg.LockTTL,
	)
	accountQuerySvc := query.NewAccountQueryService(accounts, viewCache, cfg.CacheTTL)
	transactionQuerySvc := query.NewTransactionQueryService(txnLog, viewCache, cfg.CacheTTL)

	accountHandler := handler.NewAccountHandler(commandSvc, accountQuerySvc)
	transactionHandler := handler.NewTransactionHandler(commandSvc, transactionQuerySvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", healthHandler(db, redisClient, viewCache))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisClient != nil {
		refresher := query.NewViewRefresher(accounts, viewCache, logger, cfg.CacheTTL)
		go func() {
			subscriber := events.NewSubscriber(redisClient, logger, events.SubscriberConfig{
				Group:    "ledger-view-refresher",
				Consumer: "refresher-1",
				Stream:   events.LedgerEventsStream,
				Handler:  refresher.HandleEvent,
			})
			if err := subscriber.Start(ctx); err != nil {
				logger.Info("subscriber stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	v1 := router.Group("/v1")
	{
		v1.POST("/accounts", accountHandler.CreateAccount)
		v1.GET("/accounts/:accountId", accountHandler.GetAccount)
		v1.GET("/owners/:ownerId/accounts", accountHandler.ListOwnerAccounts)

		v1.POST("/transactions", transactionHandler.ApplyTransaction)
		v1.GET("/transactions", transactionHandler.ListTransactions)
		v1.GET("/transactions/:transactionId", transactionHandler.GetTransaction)
		v1.GET("/accounts/:accountId/transactions", transactionHandler.ListAccountTransactions)
	}

	logger.Info("ledger service starting", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// healthHandler reports dependency health. In dev mode both checks are skipped
// since everything is in-process.
func healthHandler(db *sql.DB, redisClient *redis.Client, viewCache cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				checks["database"] = "up"
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				checks["redis"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				checks["redis"] = "up"
			}
		}

		body := gin.H{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(checks) > 0 {
			body["checks"] = checks
		}
		if rc, ok := viewCache.(*cache.RedisCache); ok {
			hits, misses := rc.Stats()
			body["cache"] = gin.H{"hits": hits, "misses": misses}
		}
		c.JSON(status, body)
	}
}
