package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresResidentsRepository 住户表 Repository 实现
type PostgresResidentsRepository struct {
	db *sql.DB
}

// NewPostgresResidentsRepository 创建住户表 Repository
func NewPostgresResidentsRepository(db *sql.DB) *PostgresResidentsRepository {
	return &PostgresResidentsRepository{db: db}
}

// 确保实现了接口
var _ ResidentsRepository = (*PostgresResidentsRepository)(nil)

// Ensure 确保住户行存在（首包自动建行，FK 目标）
func (r *PostgresResidentsRepository) Ensure(ctx context.Context, residentID string) error {
	query := `
		INSERT INTO residents (id, name, created_at)
		VALUES ($1, NULL, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, residentID); err != nil {
		return fmt.Errorf("failed to ensure resident: %w", err)
	}
	return nil
}

// PostgresReportsRepository 生成报告表 Repository 实现（仅保留期清理）
type PostgresReportsRepository struct {
	db *sql.DB
}

// NewPostgresReportsRepository 创建报告表 Repository
func NewPostgresReportsRepository(db *sql.DB) *PostgresReportsRepository {
	return &PostgresReportsRepository{db: db}
}

// 确保实现了接口
var _ ReportsRepository = (*PostgresReportsRepository)(nil)

// DeleteReportsBefore 删除早于 date 的报告
func (r *PostgresReportsRepository) DeleteReportsBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM daily_reports WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete daily reports: %w", err)
	}
	return res.RowsAffected()
}
