package main

import (
    "context"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/raffle-number-reservation/internal/config"
    "github.com/iliyamo/raffle-number-reservation/internal/database"
    "github.com/iliyamo/raffle-number-reservation/internal/handler"
    "github.com/iliyamo/raffle-number-reservation/internal/middleware"
    "github.com/iliyamo/raffle-number-reservation/internal/notify"
    "github.com/iliyamo/raffle-number-reservation/internal/queue"
    "github.com/iliyamo/raffle-number-reservation/internal/repository"
    "github.com/iliyamo/raffle-number-reservation/internal/router"
    "github.com/iliyamo/raffle-number-reservation/internal/service"
    "github.com/iliyamo/raffle-number-reservation/internal/worker"
)

func main() {
    _ = godotenv.Load() // .env is optional; real env vars win
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()
    if err := database.EnsureSchema(context.Background(), db); err != nil {
        log.Fatalf("schema: %v", err)
    }

    repo := repository.NewTicketRepo(db)
    broker := notify.NewBroker()
    sink := notify.Fanout{broker, notify.NewAMQPSink()}
    engine := service.NewReservationEngine(repo, sink, cfg.ReservationTTL)

    // Redis is optional; when unreachable both middlewares pass through.
    rdb := config.NewRedisClient()
    cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
    limitMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e)
    router.RegisterAPI(e, handler.NewNumbersHandler(engine, broker, cfg.PoolSize), cacheMW, limitMW)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    go worker.NewExpirySweeper(engine, cfg.SweepInterval).Start(ctx)
    go func() {
        if err := queue.StartTicketEventConsumer(); err != nil {
            log.Printf("event-consumer: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s, pool=%d, ttl=%s, sweep=%s)",
        addr, cfg.Env, cfg.PoolSize, cfg.ReservationTTL, cfg.SweepInterval)
    go func() {
        if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown: %v", err)
    }
}
