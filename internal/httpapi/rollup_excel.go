package httpapi

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"walkerwatch/internal/repository"
)

// DailyRollupExportHeader 天聚合导出表头
var DailyRollupExportHeader = []string{
	"Date",
	"Samples",
	"Steps Max",
	"Cadence Avg (spm)",
	"Step Var Avg",
	"Falls",
	"Tilt Spikes",
	"Heavy Leans",
	"Inactivity",
	"Active Seconds",
}

// GenerateDailyRollupExport 生成天聚合 Excel 文件
func GenerateDailyRollupExport(residentID string, rows []repository.RollupRow) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，出错路径单独 Close

	sheetName := "Daily Rollups"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range DailyRollupExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, row := range rows {
		values := []interface{}{
			row.Date,
			row.SampleCount,
			row.StepsMax,
			floatOrEmpty(row.CadenceAvg()),
			floatOrEmpty(row.StepVarAvg()),
			row.FallCount,
			row.TiltSpikeCount,
			row.HeavyLeanCount,
			row.InactivityCount,
			row.ActiveSeconds,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	f.SetColWidth(sheetName, "A", "J", 16)
	f.SetCellValue(sheetName, "L1", "Resident")
	f.SetCellValue(sheetName, "M1", residentID)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
