package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"walkerwatch/internal/proactive"
)

// SessionHandler 数字人会话注册处理器
//
// 语音前端建立会话后注册进来，主动播报才有下发通道；
// 注销（幂等）同时清空该住户的播报速率窗口。
type SessionHandler struct {
	dispatcher *proactive.Dispatcher
	logger     *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(dispatcher *proactive.Dispatcher, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type sessionRequest struct {
	ResidentID string `json:"residentId"`
	SessionID  string `json:"sessionId"`
}

// Serve 按方法分发：POST 注册，DELETE 注销
func (h *SessionHandler) Serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.register(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) register(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ResidentID == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "residentId and sessionId are required")
		return
	}

	h.dispatcher.SetResidentSession(req.ResidentID, req.SessionID)
	h.logger.Info("Avatar session registered",
		zap.String("resident_id", req.ResidentID),
		zap.String("session_id", req.SessionID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ResidentID == "" {
		writeError(w, http.StatusBadRequest, "residentId is required")
		return
	}

	h.dispatcher.ClearSession(req.ResidentID)
	h.logger.Info("Avatar session cleared",
		zap.String("resident_id", req.ResidentID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
