package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresSamplesRepository 采样表 Repository 实现
type PostgresSamplesRepository struct {
	db *sql.DB
}

// NewPostgresSamplesRepository 创建采样表 Repository
func NewPostgresSamplesRepository(db *sql.DB) *PostgresSamplesRepository {
	return &PostgresSamplesRepository{db: db}
}

// 确保实现了接口
var _ SamplesRepository = (*PostgresSamplesRepository)(nil)

// InsertMetricSample 写入一条原始采样
func (r *PostgresSamplesRepository) InsertMetricSample(ctx context.Context, row *MetricSampleRow) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	query := `
		INSERT INTO metric_samples (id, resident_id, ts, walker_json, vision_json, merged_json)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		row.ID, row.ResidentID, row.Ts, row.WalkerJSON, row.VisionJSON, row.MergedJSON)
	if err != nil {
		return fmt.Errorf("failed to insert metric sample: %w", err)
	}
	return nil
}

// InsertExerciseSample 写入一条归一化运动指标采样
func (r *PostgresSamplesRepository) InsertExerciseSample(ctx context.Context, row *ExerciseSampleRow) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	query := `
		INSERT INTO exercise_metric_samples (
			id, resident_id, camera_id, ts,
			fall_suspected, fall_count, total_time_on_ground_seconds, posture_state,
			step_count, cadence_spm, avg_cadence_spm, step_time_cv, step_time_mean,
			activity_state, asymmetry_index, fall_risk_level, fall_risk_score,
			fog_status, fog_episodes, fog_duration_seconds,
			person_detected, confidence, source_fps, frame_id,
			steps_merged, tilt_deg, step_var, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		row.ID, row.ResidentID, row.CameraID, row.Ts,
		row.FallSuspected, row.FallCount, row.TotalTimeOnGroundSeconds, row.PostureState,
		row.StepCount, row.CadenceSpm, row.AvgCadenceSpm, row.StepTimeCv, row.StepTimeMean,
		row.ActivityState, row.AsymmetryIndex, row.FallRiskLevel, row.FallRiskScore,
		row.FogStatus, row.FogEpisodes, row.FogDurationSeconds,
		row.PersonDetected, row.Confidence, row.SourceFps, row.FrameID,
		row.StepsMerged, row.TiltDeg, row.StepVar)
	if err != nil {
		return fmt.Errorf("failed to insert exercise sample: %w", err)
	}
	return nil
}

// DeleteMetricSamplesBefore 删除早于 ts 的原始采样
func (r *PostgresSamplesRepository) DeleteMetricSamplesBefore(ctx context.Context, ts int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE ts < $1`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to delete metric samples: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExerciseSamplesBefore 删除早于 ts 的归一化采样
func (r *PostgresSamplesRepository) DeleteExerciseSamplesBefore(ctx context.Context, ts int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exercise_metric_samples WHERE ts < $1`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to delete exercise samples: %w", err)
	}
	return res.RowsAffected()
}
