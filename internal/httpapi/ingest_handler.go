package httpapi

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"walkerwatch/internal/service"
)

// maxPacketBytes 单个数据包上限
const maxPacketBytes = 1 << 20

// IngestHandler 数据包接入处理器
type IngestHandler struct {
	monitor *service.MonitorService
	logger  *zap.Logger
}

// NewIngestHandler 创建接入处理器
func NewIngestHandler(monitor *service.MonitorService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		monitor: monitor,
		logger:  logger,
	}
}

// IngestWalker 接收助行器数据包
func (h *IngestHandler) IngestWalker(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPacketBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := h.monitor.HandleWalkerPacket(r.Context(), data); err != nil {
		h.logger.Warn("Rejected walker packet", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// IngestVision 接收视觉分析数据包
func (h *IngestHandler) IngestVision(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPacketBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := h.monitor.HandleVisionPacket(r.Context(), data); err != nil {
		h.logger.Warn("Rejected vision packet", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
