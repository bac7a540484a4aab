package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"playlet/internal/pkg/cache"
	"playlet/internal/pkg/mongodb"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	mongo *mongodb.Client
	redis *cache.RedisCache
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(mongo *mongodb.Client, redis *cache.RedisCache) *HealthHandler {
	return &HealthHandler{mongo: mongo, redis: redis}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，确认依赖可达
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	ready := true

	if h.mongo != nil {
		if err := h.mongo.Ping(ctx); err != nil {
			deps["mongo"] = "down"
			ready = false
		} else {
			deps["mongo"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			deps["redis"] = "down"
		} else {
			deps["redis"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "not ready",
			"dependencies": deps,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"dependencies": deps,
	})
}
