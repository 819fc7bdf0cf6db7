package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"taskboard/internal/metrics"
	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler 健康检查与运行指标
type HealthHandler struct {
	db      *gorm.DB
	redis   redis.UniversalClient
	hub     *services.BoardHub
	version string
}

// NewHealthHandler; rdb and hub may be nil when those components are disabled.
func NewHealthHandler(db *gorm.DB, rdb redis.UniversalClient, hub *services.BoardHub, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, hub: hub, version: version}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]ServiceInfo `json:"services"`
	System    SystemInfo             `json:"system"`
}

// ServiceInfo 服务信息
type ServiceInfo struct {
	Status  string      `json:"status"`
	Latency string      `json:"latency,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SystemInfo 系统信息
type SystemInfo struct {
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}

var startTime = time.Now()

// Health 健康检查端点；数据库不可用为 unhealthy，Redis 不可用为 degraded
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
		Services:  make(map[string]ServiceInfo),
		System: SystemInfo{
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			GoVersion: runtime.Version(),
		},
	}

	db := h.checkDatabase(ctx)
	response.Services["database"] = db
	if h.redis != nil {
		rs := h.checkRedis(ctx)
		response.Services["redis"] = rs
		if rs.Status != "healthy" {
			response.Status = "degraded"
		}
	}
	if h.hub != nil {
		response.Services["websocket"] = ServiceInfo{
			Status:  "healthy",
			Details: map[string]int{"clients": h.hub.GetClientCount()},
		}
	}
	if db.Status != "healthy" {
		response.Status = "unhealthy"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// Ready 就绪检查端点，只检查数据库
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	db := h.checkDatabase(ctx)
	ready := db.Status == "healthy"
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"ready":     ready,
		"timestamp": time.Now(),
		"services":  map[string]string{"database": db.Status},
	})
}

// Metrics 自动化与限流计数
func (h *HealthHandler) Metrics(c *gin.Context) {
	total, byPrefix := metrics.RateLimitSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"automation": metrics.AutomationSnapshot(),
		"rate_limit": gin.H{"dropped": total, "by_prefix": byPrefix},
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ServiceInfo {
	start := time.Now()
	if h.db == nil {
		return ServiceInfo{Status: "unhealthy", Error: "database connection not initialized"}
	}
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	info := ServiceInfo{Status: "healthy", Latency: time.Since(start).String(), Details: map[string]string{"driver": h.db.Dialector.Name()}}
	if err != nil {
		info.Status = "unhealthy"
		info.Error = err.Error()
	}
	return info
}

func (h *HealthHandler) checkRedis(ctx context.Context) ServiceInfo {
	start := time.Now()
	info := ServiceInfo{Status: "healthy"}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		info.Status = "unhealthy"
		info.Error = err.Error()
	}
	info.Latency = time.Since(start).String()
	return info
}

// RegisterHealthRoutes mounts the unauthenticated probes on the engine root.
func RegisterHealthRoutes(r gin.IRoutes, handler *HealthHandler, metricsPath string) {
	r.GET("/health", handler.Health)
	r.GET("/ready", handler.Ready)
	if metricsPath != "" {
		r.GET(metricsPath, handler.Metrics)
	}
}
