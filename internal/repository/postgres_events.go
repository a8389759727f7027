package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"walkerwatch/internal/models"
)

// PostgresEventsRepository 安全事件 Repository 实现
type PostgresEventsRepository struct {
	db *sql.DB
}

// NewPostgresEventsRepository 创建安全事件 Repository
func NewPostgresEventsRepository(db *sql.DB) *PostgresEventsRepository {
	return &PostgresEventsRepository{db: db}
}

// 确保实现了接口
var _ EventsRepository = (*PostgresEventsRepository)(nil)

// InsertEvent 写入一条安全事件
func (r *PostgresEventsRepository) InsertEvent(ctx context.Context, event *models.SafetyEvent) error {
	payloadJSON := "{}"
	if event.Payload != nil {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	query := `
		INSERT INTO ingest_events (id, resident_id, ts, event_type, severity, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), event.ResidentID, event.Ts, event.EventType, event.Severity, payloadJSON)
	if err != nil {
		return fmt.Errorf("failed to insert ingest event: %w", err)
	}
	return nil
}

// ListRecent 查询住户近期事件（按时间倒序）
func (r *PostgresEventsRepository) ListRecent(ctx context.Context, residentID string, sinceTs int64, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, resident_id, ts, event_type, severity, payload_json, created_at
		FROM ingest_events
		WHERE resident_id = $1 AND ts >= $2
		ORDER BY ts DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, residentID, sinceTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var row EventRow
		if err := rows.Scan(&row.ID, &row.ResidentID, &row.Ts, &row.EventType,
			&row.Severity, &row.PayloadJSON, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return out, nil
}

// DeleteEventsBefore 删除早于 ts 的事件
func (r *PostgresEventsRepository) DeleteEventsBefore(ctx context.Context, ts int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ingest_events WHERE ts < $1`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ingest events: %w", err)
	}
	return res.RowsAffected()
}
