package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/octvision/octvision/internal/platform/auth"
)

const (
	sheetPredictions = "Predictions"
	sheetScans       = "Scans"

	// ExportFileName is the attachment name of the history workbook.
	ExportFileName = "oct-history.xlsx"
)

// Export renders the caller's prediction and scan history as an XLSX
// workbook. It always reads fresh data.
func (s *Service) Export(ctx context.Context, sess *auth.Session) ([]byte, error) {
	snap, err := s.Build(ctx, sess)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(snap)
}

func buildWorkbook(snap *Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetPredictions); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetScans); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2F5597"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	predRows := make([][]interface{}, 0, len(snap.Predictions))
	for _, p := range snap.Predictions {
		predRows = append(predRows, []interface{}{
			p.PredictionDate.Format(time.DateTime),
			p.DiseaseType,
			round1(p.ConfidenceScore * 100),
			string(p.SeverityLevel),
			p.Scan.ImageURL,
		})
	}
	if err := writeSheet(f, sheetPredictions, headerStyle,
		[]string{"Date", "Disease", "Confidence (%)", "Severity", "Image URL"}, predRows); err != nil {
		return nil, err
	}

	scanRows := make([][]interface{}, 0, len(snap.Scans))
	for _, sc := range snap.Scans {
		scanRows = append(scanRows, []interface{}{
			sc.UploadDate.Format(time.DateTime),
			sc.ImageURL,
			sc.ContentType,
			sc.SizeBytes,
			sc.ImageQuality,
		})
	}
	if err := writeSheet(f, sheetScans, headerStyle,
		[]string{"Upload Date", "Image URL", "Content Type", "Size (bytes)", "Quality"}, scanRows); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header %s!%s: %w", sheet, cell, err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header %s: %w", sheet, err)
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %s!%s: %w", sheet, cell, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", lastCol, 22); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
