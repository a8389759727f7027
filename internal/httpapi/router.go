// Package httpapi 提供 HTTP/WebSocket 接入与查询接口
package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterIngestRoutes 注册接入路由
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	r.Handle("/api/v1/ingest/walker", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.IngestWalker(w, req)
	})
	r.Handle("/api/v1/ingest/vision", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.IngestVision(w, req)
	})
}

// RegisterQueryRoutes 注册查询路由
func (r *Router) RegisterQueryRoutes(h *QueryHandler) {
	r.Handle("/api/v1/realtime", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetAllRealtime(w, req)
	})
	// residents/{id}/... 的子路径在 handler 内解析
	r.Handle("/api/v1/residents/", h.ServeResident)
}

// RegisterWSRoutes 注册 WebSocket 路由
func (r *Router) RegisterWSRoutes(h *WSHandler) {
	r.Handle("/api/v1/ws", h.Serve)
}

// RegisterSessionRoutes 注册数字人会话路由
func (r *Router) RegisterSessionRoutes(h *SessionHandler) {
	r.Handle("/api/v1/avatar/sessions", h.Serve)
}

// RegisterDoctorRoutes 注册诊断路由
func (r *Router) RegisterDoctorRoutes(h *DoctorHandler) {
	r.Handle("/health", h.HealthCheck)
	r.Handle("/healthz", h.HealthCheck)
	r.Handle("/api/v1/stats", h.GetStats)
}

// writeJSON 输出 JSON 响应
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError 输出统一错误结构
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
