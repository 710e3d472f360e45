package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/handler"
	"github.com/jengzang/safetrack-backend-go/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRouter
type Handlers struct {
	Auth        *handler.AuthHandler
	Patients    *handler.PatientHandler
	KnownPeople *handler.KnownPeopleHandler
	Recognition *handler.RecognitionHandler
	Tracking    *handler.TrackingHandler
	Geocoding   *handler.GeocodingHandler
	Chat        *handler.ChatHandler
	Health      *handler.HealthHandler
}

// RouterConfig carries the router-level settings
type RouterConfig struct {
	Tokens   middleware.TokenParser
	Limiter  *middleware.RateLimiter
	PhotoDir string // served at /photos when set
	Logger   *zap.Logger
}

// SetupRouter 设置路由
func SetupRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()

	// 全局中间件
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// 健康检查与监控
	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.PhotoDir != "" {
		r.Static("/photos", cfg.PhotoDir)
	}

	limited := r.Group("/api", middleware.RateLimit(cfg.Limiter))

	// 聊天助手
	h.Chat.Register(limited)

	v1 := limited.Group("/v1")
	{
		// 注册与登录
		h.Auth.Register(v1)

		// 需要登录的接口
		authed := v1.Group("", middleware.Auth(cfg.Tokens))
		h.Patients.Register(authed)
		h.KnownPeople.Register(authed)
		h.Recognition.Register(authed)
		h.Tracking.Register(authed)
		h.Geocoding.Register(authed)
	}

	return r
}
