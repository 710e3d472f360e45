package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/alert"
	"github.com/jengzang/safetrack-backend-go/internal/api"
	"github.com/jengzang/safetrack-backend-go/internal/auth"
	"github.com/jengzang/safetrack-backend-go/internal/cache"
	"github.com/jengzang/safetrack-backend-go/internal/chat"
	"github.com/jengzang/safetrack-backend-go/internal/config"
	"github.com/jengzang/safetrack-backend-go/internal/database"
	"github.com/jengzang/safetrack-backend-go/internal/geocoding"
	"github.com/jengzang/safetrack-backend-go/internal/handler"
	"github.com/jengzang/safetrack-backend-go/internal/logger"
	"github.com/jengzang/safetrack-backend-go/internal/middleware"
	"github.com/jengzang/safetrack-backend-go/internal/mqtt"
	"github.com/jengzang/safetrack-backend-go/internal/realtime"
	"github.com/jengzang/safetrack-backend-go/internal/recognition"
	"github.com/jengzang/safetrack-backend-go/internal/repository"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/internal/storage"
	"github.com/jengzang/safetrack-backend-go/internal/tracking"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "safetrack-backend")
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = zlog.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	kv, closeKV := openKVStore(cfg.Redis, zlog)
	defer closeKV()

	photos, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		zlog.Fatal("failed to prepare photo storage", zap.Error(err))
	}

	var subscriber tracking.Subscriber
	if mq := openMQTT(cfg.MQTT, zlog); mq != nil {
		defer mq.Disconnect()
		subscriber = mq
	}

	alerts := openAlertPublisher(cfg.RabbitMQ, zlog)
	defer alerts.Close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewHub(zlog)
	go hub.Run(hubCtx)

	// 仓储
	caretakers := repository.NewCaretakerRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	peopleRepo := repository.NewKnownPersonRepository(db)
	historyRepo := repository.NewLocationHistoryRepository(db)

	sessions := tracking.NewManager(tracking.Config{
		Interval:          cfg.Tracking.Interval,
		Jitter:            cfg.Tracking.Jitter,
		RefreshJitter:     cfg.Tracking.RefreshJitter,
		StatusTTL:         cfg.Tracking.StatusTTL,
		DeviceTopicPrefix: cfg.Tracking.DeviceTopicPrefix,
	}, tracking.Deps{
		History:     historyRepo,
		KV:          kv,
		Alerts:      alerts,
		Broadcaster: hub,
		Subscriber:  subscriber,
	}, zlog)

	// 外部服务
	geo := geocoding.NewClient(geocoding.Config{
		BaseURL:   cfg.Geocoding.BaseURL,
		UserAgent: cfg.Geocoding.UserAgent,
		CacheTTL:  cfg.Geocoding.CacheTTL,
		Interval:  cfg.Geocoding.Interval,
	}, kv, zlog)
	faces := recognition.NewClient(recognition.Config{
		Endpoint:          cfg.Recognition.URL,
		Timeout:           cfg.Recognition.Timeout,
		DefaultConfidence: cfg.Recognition.DefaultConfidence,
	}, zlog)
	gemini := chat.NewGeminiClient(chat.Config{
		APIKey:  cfg.Chat.APIKey,
		Model:   cfg.Chat.Model,
		BaseURL: cfg.Chat.BaseURL,
		Timeout: cfg.Chat.Timeout,
	}, zlog)
	if !gemini.Configured() {
		zlog.Warn("chat API key not set, /api/chat will return errors")
	}

	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)

	// 业务服务
	authSvc := service.NewAuthService(caretakers, tokens)
	patientSvc := service.NewPatientService(patientRepo, peopleRepo, photos, geo, sessions, cfg.Tracking.DefaultRadius, zlog)
	peopleSvc := service.NewKnownPeopleService(patientSvc, peopleRepo, photos, zlog)
	recognitionSvc := service.NewRecognitionService(peopleSvc, faces, zlog)
	trackingSvc := service.NewTrackingService(patientSvc, sessions, historyRepo)
	geocodingSvc := service.NewGeocodingService(geo)

	limiter := middleware.NewRateLimiter(cfg.Security.RateLimit, cfg.Security.RateWindow)
	defer limiter.Stop()

	router := api.SetupRouter(api.RouterConfig{
		Tokens:   tokens,
		Limiter:  limiter,
		PhotoDir: photos.Dir(),
		Logger:   zlog,
	}, api.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, zlog),
		Patients:    handler.NewPatientHandler(patientSvc, zlog),
		KnownPeople: handler.NewKnownPeopleHandler(peopleSvc, zlog),
		Recognition: handler.NewRecognitionHandler(recognitionSvc, zlog),
		Tracking:    handler.NewTrackingHandler(trackingSvc, hub, zlog),
		Geocoding:   handler.NewGeocodingHandler(geocodingSvc, zlog),
		Chat:        handler.NewChatHandler(chat.NewService(gemini)),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": handler.PingFunc(db.PingContext),
			"cache":    kv,
		}),
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	// 启动服务器
	go func() {
		zlog.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	sessions.StopAll()
	stopHub()
}

// openKVStore connects to Redis when configured, falling back to memory
func openKVStore(cfg config.RedisConfig, logger *zap.Logger) (cache.KVStore, func()) {
	if cfg.Addr == "" {
		return cache.NewMemoryKVStore(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store := cache.NewRedisKVStore(client)
	if err := store.Ping(context.Background()); err != nil {
		logger.Warn("redis unavailable, using in-memory cache", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return cache.NewMemoryKVStore(), func() {}
	}
	return store, func() { _ = client.Close() }
}

// openMQTT returns nil when no broker is configured or it cannot be reached
func openMQTT(cfg config.MQTTConfig, logger *zap.Logger) *mqtt.Client {
	if cfg.Broker == "" {
		return nil
	}
	client, err := mqtt.NewClient(mqtt.Config{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
	}, logger)
	if err != nil {
		logger.Warn("mqtt unavailable, device tracking disabled", zap.String("broker", cfg.Broker), zap.Error(err))
		return nil
	}
	return client
}

func openAlertPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) alert.Publisher {
	if cfg.URL == "" {
		return alert.NewLogPublisher(logger)
	}
	conn, err := alert.Dial(cfg.URL)
	if err != nil {
		logger.Warn("rabbitmq unavailable, logging alerts only", zap.Error(err))
		return alert.NewLogPublisher(logger)
	}
	pub, err := alert.NewRabbitMQPublisher(conn)
	if err != nil {
		_ = conn.Close()
		logger.Warn("rabbitmq setup failed, logging alerts only", zap.Error(err))
		return alert.NewLogPublisher(logger)
	}
	return pub
}
