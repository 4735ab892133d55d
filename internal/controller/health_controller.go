package controller

import (
	"context"
	"edu_assessment_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger is anything the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	DB    *gorm.DB
	Cache Pinger
}

func NewHealthController(db *gorm.DB, cache Pinger) *HealthController {
	return &HealthController{DB: db, Cache: cache}
}

// @Summary 健康检查
// @Description 检查数据库与缓存状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	if c.Cache != nil {
		if err := c.Cache.Ping(ctx.Request.Context()); err != nil {
			util.Error(ctx, http.StatusServiceUnavailable, "Cache unavailable")
			return
		}
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"cache":    "up",
		},
	})
}
