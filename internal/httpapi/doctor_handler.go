package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"walkerwatch/internal/hub"
	"walkerwatch/internal/retention"
	"walkerwatch/internal/service"
)

// DoctorHandler 诊断处理器
type DoctorHandler struct {
	db      *sql.DB
	redis   *redis.Client
	monitor *service.MonitorService
	hub     *hub.Hub
	sweeper *retention.Sweeper
	logger  *zap.Logger
}

// NewDoctorHandler 创建诊断处理器
func NewDoctorHandler(
	db *sql.DB,
	redisClient *redis.Client,
	monitor *service.MonitorService,
	h *hub.Hub,
	sweeper *retention.Sweeper,
	logger *zap.Logger,
) *DoctorHandler {
	return &DoctorHandler{
		db:      db,
		redis:   redisClient,
		monitor: monitor,
		hub:     h,
		sweeper: sweeper,
		logger:  logger,
	}
}

// HealthCheckResponse 健康检查响应
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck 健康检查端点
func (d *DoctorHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := make(map[string]string)

	if d.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.redis.Ping(ctx).Err(); err != nil {
			status = "unhealthy"
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if d.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.db.PingContext(ctx); err != nil {
			status = "unhealthy"
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "not configured"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
	})
}

// GetStats 接入统计与运行状态
func (d *DoctorHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats := d.monitor.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ingest":        &stats,
		"residents":     d.monitor.State().Count(),
		"subscribers":   d.hub.SubscriberCount(),
		"lastRetention": d.sweeper.LastReport(),
	})
}
