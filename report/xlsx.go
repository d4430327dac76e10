// Package report renders fleet utilization workbooks and archives them to
// S3-compatible object storage.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"rackcore/capacity"
)

const (
	SheetUtilization = "Utilization"
	SheetSummary     = "Summary"
)

var utilizationHeader = []any{
	"Rack ID", "Rack", "Size (U)", "Used (U)", "Total Power (W)",
	"Power %", "Space %", "Cooling %",
}

// WriteUtilizationXLSX writes one row per rack. Percentages above 100 are
// highlighted.
func WriteUtilizationXLSX(w io.Writer, siteID string, rows []capacity.Utilization, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetUtilization); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	pct, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}
	over, err := f.NewStyle(&excelize.Style{
		NumFmt: 2,
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#F4CCCC"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetUtilization, "A1", &utilizationHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetUtilization, "A1", "H1", bold); err != nil {
		return err
	}

	overcommitted := 0
	for i, u := range rows {
		row := i + 2
		start, _ := excelize.CoordinatesToCellName(1, row)
		values := []any{
			u.RackID, u.RackName, u.SizeU, u.UsedU, u.TotalPowerW,
			u.PowerUtilization, u.SpaceUtilization, u.CoolingUtilization,
		}
		if err := f.SetSheetRow(SheetUtilization, start, &values); err != nil {
			return err
		}
		rackOver := false
		for col, v := range []float64{u.PowerUtilization, u.SpaceUtilization, u.CoolingUtilization} {
			cell, _ := excelize.CoordinatesToCellName(6+col, row)
			style := pct
			if v > 100 {
				style = over
				rackOver = true
			}
			if err := f.SetCellStyle(SheetUtilization, cell, cell, style); err != nil {
				return err
			}
		}
		if rackOver {
			overcommitted++
		}
	}
	if err := f.SetColWidth(SheetUtilization, "B", "B", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetUtilization, "C", "H", 14); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	summary := [][]any{
		{"Site", siteID},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
		{"Racks", len(rows)},
		{"Overcommitted", overcommitted},
	}
	for i, r := range summary {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &r); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return err
	}

	return f.Write(w)
}
