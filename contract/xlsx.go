package contract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"contractdesk/access"
)

const exportSheet = "Contracts"

// ExportXLSX renders all records as an Excel workbook with the same
// column layout as the CSV export.
func (s *Service) ExportXLSX(ctx context.Context, actor access.Actor) ([]byte, error) {
	if actor.Role != access.RoleAdmin {
		return nil, ErrForbidden
	}
	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("contract: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("contract: drop default sheet: %w", err)
	}

	for col, name := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("contract: header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, name); err != nil {
			return nil, fmt.Errorf("contract: write header: %w", err)
		}
	}

	for i, rec := range recs {
		for col, value := range exportRow(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("contract: data cell: %w", err)
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, fmt.Errorf("contract: write row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("contract: encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
