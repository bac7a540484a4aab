package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"playlet/internal/config"
	"playlet/internal/handler"
	creditHandler "playlet/internal/handler/credit"
	dramaHandler "playlet/internal/handler/drama"
	jobHandler "playlet/internal/handler/job"
	"playlet/internal/pkg/cache"
	"playlet/internal/pkg/jwt"
	"playlet/internal/pkg/mongodb"
	"playlet/internal/server/middleware"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 任务与资产数据都在 MongoDB，连不上就没有可用接口
	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 初始化 Redis (可选，仅影响进度快照缓存)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	services, err := BuildServices(context.Background(), cfg, mongoClient, redisCache)
	if err != nil {
		return nil, err
	}

	// 设置路由
	srv.setupRoutes(services)

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(services *Services) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.mongo, s.redis)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 从配置读取JWT参数，如果没有配置则使用默认值
	jwtSecret := s.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := s.cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}
	jwtUtil := jwt.NewJWT(jwtSecret, accessTokenExpiry)

	jobHdl := jobHandler.NewHandler(services.Job)
	dramaHdl := dramaHandler.NewHandler(services.Drama)
	creditHdl := creditHandler.NewHandler(services.Credit)

	// API v1，所有接口都要求登录
	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(jwtUtil))
	{
		// 生成任务
		v1.POST("/jobs", jobHdl.Enqueue)
		v1.GET("/jobs", jobHdl.List)
		v1.GET("/jobs/:job_id", jobHdl.Get)
		v1.POST("/jobs/:job_id/cancel", jobHdl.Cancel)
		v1.POST("/jobs/:job_id/import", jobHdl.MarkImported)
		v1.GET("/projects/:project_id/jobs", jobHdl.ListByProject)

		// 资产版本管理
		v1.GET("/characters/:character_id/images", dramaHdl.ListCharacterImages)
		v1.POST("/characters/:character_id/images/:image_id/activate", dramaHdl.SwitchCharacterImage)
		v1.GET("/scenes/:scene_id/images", dramaHdl.ListSceneImages)
		v1.POST("/scenes/:scene_id/images/:image_id/activate", dramaHdl.SwitchSceneImage)
		v1.GET("/shots/:shot_id/videos", dramaHdl.ListVideoVersions)
		v1.POST("/shots/:shot_id/videos/:asset_id/activate", dramaHdl.SwitchVideoVersion)
		v1.DELETE("/shots/:shot_id/videos/:asset_id", dramaHdl.DeleteVideoVersion)

		// 积分
		v1.GET("/credits/balance", creditHdl.Balance)
		v1.GET("/credits/transactions", creditHdl.History)
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 关闭连接
		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
