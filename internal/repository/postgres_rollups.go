package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRollupsRepository 聚合表 Repository 实现
//
// 桶行采用 INSERT ... ON CONFLICT DO UPDATE 原子增量：
// 计数器相加，steps_max 用 GREATEST 保持单调，updated_at 取当前时间。
type PostgresRollupsRepository struct {
	db *sql.DB
}

// NewPostgresRollupsRepository 创建聚合表 Repository
func NewPostgresRollupsRepository(db *sql.DB) *PostgresRollupsRepository {
	return &PostgresRollupsRepository{db: db}
}

// 确保实现了接口
var _ RollupsRepository = (*PostgresRollupsRepository)(nil)

// deltaValues 将增量展开成插入值
func deltaValues(delta *RollupDelta) (stepsMax int64, cadenceSum float64, cadenceCount int64,
	stepVarSum float64, stepVarCount int64, fall, tiltSpike, heavyLean, inactivity int64, activeSeconds int64) {
	if delta.Steps != nil && int64(*delta.Steps) > 0 {
		stepsMax = int64(*delta.Steps)
	}
	if delta.Cadence != nil {
		cadenceSum = *delta.Cadence
		cadenceCount = 1
	}
	if delta.StepVar != nil {
		stepVarSum = *delta.StepVar
		stepVarCount = 1
	}
	if delta.Fall {
		fall = 1
	}
	if delta.TiltSpike {
		tiltSpike = 1
	}
	if delta.HeavyLean {
		heavyLean = 1
	}
	if delta.Inactivity {
		inactivity = 1
	}
	activeSeconds = delta.ActiveSeconds
	if activeSeconds < 0 {
		activeSeconds = 0
	}
	return
}

// UpsertHourly 小时桶原子增量
func (r *PostgresRollupsRepository) UpsertHourly(ctx context.Context, residentID string, bucketStart int64, date string, delta *RollupDelta) error {
	stepsMax, cadenceSum, cadenceCount, stepVarSum, stepVarCount,
		fall, tiltSpike, heavyLean, inactivity, activeSeconds := deltaValues(delta)

	query := `
		INSERT INTO hourly_metric_rollups (
			id, resident_id, bucket_start_ts, date,
			sample_count, steps_max, cadence_sum, cadence_count,
			step_var_sum, step_var_count, fall_count, tilt_spike_count,
			heavy_lean_count, inactivity_count, active_seconds, updated_at
		) VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (resident_id, bucket_start_ts) DO UPDATE SET
			sample_count = hourly_metric_rollups.sample_count + 1,
			steps_max = GREATEST(hourly_metric_rollups.steps_max, EXCLUDED.steps_max),
			cadence_sum = hourly_metric_rollups.cadence_sum + EXCLUDED.cadence_sum,
			cadence_count = hourly_metric_rollups.cadence_count + EXCLUDED.cadence_count,
			step_var_sum = hourly_metric_rollups.step_var_sum + EXCLUDED.step_var_sum,
			step_var_count = hourly_metric_rollups.step_var_count + EXCLUDED.step_var_count,
			fall_count = hourly_metric_rollups.fall_count + EXCLUDED.fall_count,
			tilt_spike_count = hourly_metric_rollups.tilt_spike_count + EXCLUDED.tilt_spike_count,
			heavy_lean_count = hourly_metric_rollups.heavy_lean_count + EXCLUDED.heavy_lean_count,
			inactivity_count = hourly_metric_rollups.inactivity_count + EXCLUDED.inactivity_count,
			active_seconds = hourly_metric_rollups.active_seconds + EXCLUDED.active_seconds,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), residentID, bucketStart, date,
		stepsMax, cadenceSum, cadenceCount, stepVarSum, stepVarCount,
		fall, tiltSpike, heavyLean, inactivity, activeSeconds)
	if err != nil {
		return fmt.Errorf("failed to upsert hourly rollup: %w", err)
	}
	return nil
}

// UpsertDaily 天桶原子增量
func (r *PostgresRollupsRepository) UpsertDaily(ctx context.Context, residentID string, date string, delta *RollupDelta) error {
	stepsMax, cadenceSum, cadenceCount, stepVarSum, stepVarCount,
		fall, tiltSpike, heavyLean, inactivity, activeSeconds := deltaValues(delta)

	query := `
		INSERT INTO daily_metric_rollups (
			id, resident_id, date,
			sample_count, steps_max, cadence_sum, cadence_count,
			step_var_sum, step_var_count, fall_count, tilt_spike_count,
			heavy_lean_count, inactivity_count, active_seconds, updated_at
		) VALUES ($1, $2, $3, 1, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (resident_id, date) DO UPDATE SET
			sample_count = daily_metric_rollups.sample_count + 1,
			steps_max = GREATEST(daily_metric_rollups.steps_max, EXCLUDED.steps_max),
			cadence_sum = daily_metric_rollups.cadence_sum + EXCLUDED.cadence_sum,
			cadence_count = daily_metric_rollups.cadence_count + EXCLUDED.cadence_count,
			step_var_sum = daily_metric_rollups.step_var_sum + EXCLUDED.step_var_sum,
			step_var_count = daily_metric_rollups.step_var_count + EXCLUDED.step_var_count,
			fall_count = daily_metric_rollups.fall_count + EXCLUDED.fall_count,
			tilt_spike_count = daily_metric_rollups.tilt_spike_count + EXCLUDED.tilt_spike_count,
			heavy_lean_count = daily_metric_rollups.heavy_lean_count + EXCLUDED.heavy_lean_count,
			inactivity_count = daily_metric_rollups.inactivity_count + EXCLUDED.inactivity_count,
			active_seconds = daily_metric_rollups.active_seconds + EXCLUDED.active_seconds,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), residentID, date,
		stepsMax, cadenceSum, cadenceCount, stepVarSum, stepVarCount,
		fall, tiltSpike, heavyLean, inactivity, activeSeconds)
	if err != nil {
		return fmt.Errorf("failed to upsert daily rollup: %w", err)
	}
	return nil
}

// ListHourly 查询时间范围内的小时桶
func (r *PostgresRollupsRepository) ListHourly(ctx context.Context, residentID string, fromTs, toTs int64) ([]RollupRow, error) {
	query := `
		SELECT id, resident_id, bucket_start_ts, date::text,
			sample_count, steps_max, cadence_sum, cadence_count,
			step_var_sum, step_var_count, fall_count, tilt_spike_count,
			heavy_lean_count, inactivity_count, active_seconds
		FROM hourly_metric_rollups
		WHERE resident_id = $1 AND bucket_start_ts >= $2 AND bucket_start_ts <= $3
		ORDER BY bucket_start_ts ASC
	`
	rows, err := r.db.QueryContext(ctx, query, residentID, fromTs, toTs)
	if err != nil {
		return nil, fmt.Errorf("failed to list hourly rollups: %w", err)
	}
	defer rows.Close()
	return scanRollupRows(rows, true)
}

// ListDaily 查询日期范围内的天桶
func (r *PostgresRollupsRepository) ListDaily(ctx context.Context, residentID string, fromDate, toDate string) ([]RollupRow, error) {
	query := `
		SELECT id, resident_id, 0, date::text,
			sample_count, steps_max, cadence_sum, cadence_count,
			step_var_sum, step_var_count, fall_count, tilt_spike_count,
			heavy_lean_count, inactivity_count, active_seconds
		FROM daily_metric_rollups
		WHERE resident_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := r.db.QueryContext(ctx, query, residentID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily rollups: %w", err)
	}
	defer rows.Close()
	return scanRollupRows(rows, false)
}

func scanRollupRows(rows *sql.Rows, hourly bool) ([]RollupRow, error) {
	var out []RollupRow
	for rows.Next() {
		var row RollupRow
		if err := rows.Scan(&row.ID, &row.ResidentID, &row.BucketStartTs, &row.Date,
			&row.SampleCount, &row.StepsMax, &row.CadenceSum, &row.CadenceCount,
			&row.StepVarSum, &row.StepVarCount, &row.FallCount, &row.TiltSpikeCount,
			&row.HeavyLeanCount, &row.InactivityCount, &row.ActiveSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan rollup row: %w", err)
		}
		if !hourly {
			row.BucketStartTs = 0
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rollup rows: %w", err)
	}
	return out, nil
}

// DeleteHourlyBefore 删除早于 date 的小时桶
func (r *PostgresRollupsRepository) DeleteHourlyBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hourly_metric_rollups WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete hourly rollups: %w", err)
	}
	return res.RowsAffected()
}

// DeleteDailyBefore 删除早于 date 的天桶
func (r *PostgresRollupsRepository) DeleteDailyBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM daily_metric_rollups WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete daily rollups: %w", err)
	}
	return res.RowsAffected()
}
