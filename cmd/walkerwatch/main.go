package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/collaborator"
	"walkerwatch/internal/config"
	"walkerwatch/internal/consumer"
	"walkerwatch/internal/database"
	"walkerwatch/internal/fusion"
	"walkerwatch/internal/httpapi"
	"walkerwatch/internal/hub"
	"walkerwatch/internal/ingest"
	"walkerwatch/internal/logger"
	"walkerwatch/internal/models"
	"walkerwatch/internal/persist"
	"walkerwatch/internal/proactive"
	"walkerwatch/internal/redisx"
	"walkerwatch/internal/repository"
	"walkerwatch/internal/retention"
	"walkerwatch/internal/rollup"
	"walkerwatch/internal/service"
	"walkerwatch/internal/store"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化 Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "walkerwatch")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting walkerwatch service",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("cache_prefix", cfg.Cache.RealtimeKeyPrefix),
		zap.Int("persist_interval", cfg.Persist.IntervalSeconds),
		zap.Bool("proactive_enabled", cfg.Proactive.Enabled),
	)

	// 数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Redis
	redisClient := redisx.NewRedisClient(&cfg.Redis)
	defer redisx.Close(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisx.Ping(ctx, redisClient); err != nil {
		zapLogger.Warn("Redis unreachable at startup; realtime cache degraded", zap.Error(err))
	}

	// 仓库层
	residentsRepo := repository.NewPostgresResidentsRepository(db)
	samplesRepo := repository.NewPostgresSamplesRepository(db)
	eventsRepo := repository.NewPostgresEventsRepository(db)
	rollupsRepo := repository.NewPostgresRollupsRepository(db)
	reportsRepo := repository.NewPostgresReportsRepository(db)

	// 融合状态与实时广播
	state := fusion.NewStateStore()
	cacheMirror := fusion.NewCacheMirror(store.NewRedisKV(redisClient),
		cfg.Cache.RealtimeKeyPrefix, cfg.Cache.RealtimeTTL, zapLogger)
	broadcastHub := hub.NewHub(func(residentID string) []*models.MergedState {
		if residentID == "" {
			return state.Snapshot()
		}
		if m, ok := state.Get(residentID); ok {
			return []*models.MergedState{m}
		}
		return nil
	}, zapLogger)

	// 主动播报
	dispatcher := proactive.NewDispatcher(cfg,
		collaborator.NewMessageClient(cfg, zapLogger),
		collaborator.NewTTSClient(cfg, zapLogger),
		collaborator.NewAvatarClient(cfg, zapLogger),
		broadcastHub,
		zapLogger,
	)
	dispatcher.Start(ctx)

	// 接入管线
	stats := ingest.NewStats()
	normalizer := ingest.NewNormalizer(cfg.Ingest.AllowedResidentID, cfg.Ingest.DedupeWindowMs, stats, zapLogger)
	throttler := persist.NewThrottler(cfg.Persist.IntervalSeconds,
		cfg.Persist.CriticalIntervalSeconds, cfg.Persist.FullPayloadEveryN)
	aggregator := rollup.NewAggregator(rollupsRepo, zapLogger)

	monitor := service.NewMonitorService(cfg, state, cacheMirror, normalizer, stats,
		throttler, aggregator, broadcastHub, dispatcher,
		residentsRepo, samplesRepo, eventsRepo, zapLogger)

	// 保留期清理（独立定时器，不挂在接收路径上）
	sweeper := retention.NewSweeper(cfg, samplesRepo, eventsRepo, rollupsRepo, reportsRepo, zapLogger)
	sweeper.Start(ctx)

	// MQTT 接入（可选）
	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTT.Broker != "" {
		mqttConsumer, err = consumer.NewMQTTConsumer(cfg, monitor, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create MQTT consumer", zap.Error(err))
		}
		if err := mqttConsumer.Start(ctx); err != nil {
			zapLogger.Fatal("Failed to start MQTT consumer", zap.Error(err))
		}
	}

	// HTTP 路由
	router := httpapi.NewRouter(zapLogger)
	router.RegisterIngestRoutes(httpapi.NewIngestHandler(monitor, zapLogger))
	router.RegisterQueryRoutes(httpapi.NewQueryHandler(monitor, eventsRepo, rollupsRepo, zapLogger))
	router.RegisterWSRoutes(httpapi.NewWSHandler(broadcastHub, zapLogger))
	router.RegisterSessionRoutes(httpapi.NewSessionHandler(dispatcher, zapLogger))
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(db, redisClient, monitor, broadcastHub, sweeper, zapLogger))

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if mqttConsumer != nil {
		mqttConsumer.Stop()
	}
	cancel()
	dispatcher.Wait()

	zapLogger.Info("Service stopped")
}
