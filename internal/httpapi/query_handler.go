package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"walkerwatch/internal/repository"
	"walkerwatch/internal/service"
)

// QueryHandler 住户状态/历史查询处理器
type QueryHandler struct {
	monitor *service.MonitorService
	events  repository.EventsRepository
	rollups repository.RollupsRepository
	logger  *zap.Logger
}

// NewQueryHandler 创建查询处理器
func NewQueryHandler(
	monitor *service.MonitorService,
	events repository.EventsRepository,
	rollups repository.RollupsRepository,
	logger *zap.Logger,
) *QueryHandler {
	return &QueryHandler{
		monitor: monitor,
		events:  events,
		rollups: rollups,
		logger:  logger,
	}
}

// GetAllRealtime 全部住户的实时融合快照
func (h *QueryHandler) GetAllRealtime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.State().Snapshot())
}

// ServeResident 解析 /api/v1/residents/{id}/... 子路径并分发
func (h *QueryHandler) ServeResident(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/residents/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	residentID := parts[0]
	sub := strings.Join(parts[1:], "/")

	switch sub {
	case "realtime":
		h.getRealtime(w, r, residentID)
	case "events":
		h.getEvents(w, r, residentID)
	case "rollups/hourly":
		h.getHourlyRollups(w, r, residentID)
	case "rollups/daily":
		h.getDailyRollups(w, r, residentID)
	case "rollups/daily/export":
		h.exportDailyRollups(w, r, residentID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// getRealtime 住户当前融合状态
func (h *QueryHandler) getRealtime(w http.ResponseWriter, r *http.Request, residentID string) {
	state, ok := h.monitor.State().Get(residentID)
	if !ok {
		writeError(w, http.StatusNotFound, "resident not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// getEvents 住户近期安全事件（倒序）
func (h *QueryHandler) getEvents(w http.ResponseWriter, r *http.Request, residentID string) {
	sinceTs := queryInt64(r, "since", 0)
	limit := int(queryInt64(r, "limit", 100))

	rows, err := h.events.ListRecent(r.Context(), residentID, sinceTs, limit)
	if err != nil {
		h.logger.Error("Failed to list events",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"residentId": residentID,
		"events":     rows,
	})
}

// getHourlyRollups 小时聚合桶（默认最近 24 小时）
func (h *QueryHandler) getHourlyRollups(w http.ResponseWriter, r *http.Request, residentID string) {
	now := time.Now().Unix()
	fromTs := queryInt64(r, "from", now-86400)
	toTs := queryInt64(r, "to", now)

	rows, err := h.rollups.ListHourly(r.Context(), residentID, fromTs, toTs)
	if err != nil {
		h.logger.Error("Failed to list hourly rollups",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rollups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"residentId": residentID,
		"rollups":    renderRollups(rows),
	})
}

// getDailyRollups 天聚合桶（默认最近 30 天）
func (h *QueryHandler) getDailyRollups(w http.ResponseWriter, r *http.Request, residentID string) {
	now := time.Now().UTC()
	fromDate := queryString(r, "from", now.AddDate(0, 0, -30).Format("2006-01-02"))
	toDate := queryString(r, "to", now.Format("2006-01-02"))

	rows, err := h.rollups.ListDaily(r.Context(), residentID, fromDate, toDate)
	if err != nil {
		h.logger.Error("Failed to list daily rollups",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rollups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"residentId": residentID,
		"rollups":    renderRollups(rows),
	})
}

// exportDailyRollups 天聚合导出为 Excel
func (h *QueryHandler) exportDailyRollups(w http.ResponseWriter, r *http.Request, residentID string) {
	now := time.Now().UTC()
	fromDate := queryString(r, "from", now.AddDate(0, 0, -30).Format("2006-01-02"))
	toDate := queryString(r, "to", now.Format("2006-01-02"))

	rows, err := h.rollups.ListDaily(r.Context(), residentID, fromDate, toDate)
	if err != nil {
		h.logger.Error("Failed to list daily rollups for export",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rollups")
		return
	}

	data, err := GenerateDailyRollupExport(residentID, rows)
	if err != nil {
		h.logger.Error("Failed to generate rollup export",
			zap.String("resident_id", residentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		"attachment; filename=\"daily_rollups_"+residentID+"_"+fromDate+"_"+toDate+".xlsx\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// rollupView 聚合桶响应（附惰性均值）
type rollupView struct {
	repository.RollupRow
	CadenceAvg *float64 `json:"cadenceAvg"`
	StepVarAvg *float64 `json:"stepVarAvg"`
}

func renderRollups(rows []repository.RollupRow) []rollupView {
	out := make([]rollupView, 0, len(rows))
	for i := range rows {
		out = append(out, rollupView{
			RollupRow:  rows[i],
			CadenceAvg: rows[i].CadenceAvg(),
			StepVarAvg: rows[i].StepVarAvg(),
		})
	}
	return out
}

func queryInt64(r *http.Request, key string, defaultValue int64) int64 {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func queryString(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}
