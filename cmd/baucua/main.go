package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ndthang0000/bau-cua-server/internal/config"
	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/domain"
	"github.com/ndthang0000/bau-cua-server/internal/modules/baucua/machine"
	baucuaDB "github.com/ndthang0000/bau-cua-server/internal/modules/baucua/repository/db"
	baucuaMemory "github.com/ndthang0000/bau-cua-server/internal/modules/baucua/repository/memory"
	baucuaRedis "github.com/ndthang0000/bau-cua-server/internal/modules/baucua/repository/redis"
	baucuaUseCase "github.com/ndthang0000/bau-cua-server/internal/modules/baucua/usecase"
	gatewayHttp "github.com/ndthang0000/bau-cua-server/internal/modules/gateway/adapter/http"
	gatewayLocal "github.com/ndthang0000/bau-cua-server/internal/modules/gateway/adapter/local"
	gatewayUseCase "github.com/ndthang0000/bau-cua-server/internal/modules/gateway/usecase"
	"github.com/ndthang0000/bau-cua-server/internal/modules/gateway/ws"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

func main() {
	pprofPort := flag.String("pprof-port", "", "Port to run pprof server on (e.g., 6060)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Server.LogFile != "" {
		logger.InitWithFile(cfg.Server.LogFile, cfg.Server.LogLevel, "json")
	} else {
		logger.Init(logger.Config{Level: cfg.Server.LogLevel, Format: "json"})
	}
	defer logger.Flush()

	if *pprofPort != "" {
		go func() {
			addr := "localhost:" + *pprofPort
			logger.InfoGlobal().Str("addr", addr).Msg("starting pprof server")
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.ErrorGlobal().Err(err).Msg("pprof server failed")
			}
		}()
	}

	logger.InfoGlobal().Msg("starting bau cua server")

	// Infrastructure: the settled history needs Postgres, the redis bet
	// repo needs Redis; neither is required for a memory-only deployment.
	var (
		orderRepo domain.BetOrderRepository
		roundRepo domain.RoundRepository
	)
	if cfg.Game.PersistHistory {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)

		gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.NewGormLogger(),
		})
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("failed to connect to database")
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("failed to get database instance")
		}
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
		defer sqlDB.Close()

		if err := sqlDB.Ping(); err != nil {
			logger.FatalGlobal().Err(err).Msg("failed to ping database")
		}

		orderRepo = baucuaDB.NewBetOrderRepository(gormDB)
		roundRepo = baucuaDB.NewRoundRepository(gormDB)
		logger.InfoGlobal().Msg("database connected, history enabled")
	}

	var betRepo domain.BetRepository
	if cfg.Game.RepoType == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		})
		defer rdb.Close()
		betRepo = baucuaRedis.NewBetRepository(rdb)
		logger.InfoGlobal().Msg("bet repository: redis")
	} else {
		betRepo = baucuaMemory.NewBetRepository()
		logger.InfoGlobal().Msg("bet repository: memory")
	}

	roomRepo := baucuaMemory.NewRoomRepository()

	// Modules.
	wsManager := ws.NewManager()
	broadcaster := gatewayLocal.NewBroadcaster(wsManager)

	roomUC := baucuaUseCase.NewRoomUseCase(roomRepo, betRepo, orderRepo, roundRepo, broadcaster)
	roomUC.GraceWindow = cfg.Game.EmptyGrace
	roomUC.Retention = cfg.Game.Retention

	stateMachine := machine.NewStateMachine(roomUC)
	stateMachine.BettingDuration = cfg.Game.BettingDuration
	stateMachine.ShakingDuration = cfg.Game.ShakingDuration
	stateMachine.ResultDuration = cfg.Game.ResultDuration
	roomUC.SetStateMachine(stateMachine)

	gatewayUC := gatewayUseCase.NewGatewayUseCase(roomUC, wsManager)
	gatewayHandler := gatewayHttp.NewHandler(gatewayUC, wsManager)
	logger.InfoGlobal().Msg("game modules initialized")

	// Periodic cleanup of empty and expired rooms.
	sweeper := cron.New()
	sweeper.AddFunc("@every 1m", func() {
		ctx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
		roomUC.CleanupSweep(ctx)
	})
	sweeper.Start()

	// HTTP server.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	router.GET("/ws", func(c *gin.Context) {
		gatewayHandler.HandleWebSocket(c.Writer, c.Request)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	logger.InfoGlobal().
		Str("http_port", cfg.Server.HTTPPort).
		Str("ws_url", fmt.Sprintf("ws://localhost:%s/ws", cfg.Server.HTTPPort)).
		Msg("bau cua server running")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalGlobal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.InfoGlobal().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorGlobal().Err(err).Msg("http server forced to shutdown")
	}

	sweeper.Stop()
	stateMachine.Shutdown()
	wsManager.Shutdown()

	logger.InfoGlobal().Msg("server exited")
}
