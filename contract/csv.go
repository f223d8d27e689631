package contract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"contractdesk/access"
	"contractdesk/record"
)

// ExportHeader is the fixed column layout of a records export.
var ExportHeader = []string{"ID", "Contract", "Nom", "CIN", "Phone", "Verified", "Modifie_Par"}

// ImportCSV parses a CSV stream and runs a batch import. The header
// row is skipped and rows with fewer than two columns are dropped
// before they reach the record engine.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, actor access.Actor) Response[record.ImportResult] {
	if resp := requireStaff[record.ImportResult](actor); resp != nil {
		return *resp
	}

	rows, err := ParseImportCSV(r)
	if err != nil {
		s.log.Warn("csv import parse failed", zap.Error(err))
		return Response[record.ImportResult]{Success: false, Message: "Could not read CSV file.", Kind: KindValidation}
	}

	result, err := s.records.ImportBatch(ctx, rows, actor)
	if err != nil {
		return failure[record.ImportResult](err)
	}
	return ok(result)
}

// ExportCSV writes all records as CSV with the fixed export header.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, actor access.Actor) error {
	if actor.Role != access.RoleAdmin {
		return ErrForbidden
	}
	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("contract: write csv header: %w", err)
	}
	for _, rec := range recs {
		if err := cw.Write(exportRow(rec)); err != nil {
			return fmt.Errorf("contract: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseImportCSV splits a CSV payload into import rows:
// (contract, nom, cin, phone), header skipped, short rows dropped.
func ParseImportCSV(r io.Reader) ([]record.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("contract: parse csv: %w", err)
	}

	rows := []record.ImportRow{}
	for i, cols := range all {
		if i == 0 {
			continue // header
		}
		if len(cols) < 2 {
			continue
		}
		row := record.ImportRow{
			Contract: strings.TrimSpace(cols[0]),
			Nom:      strings.TrimSpace(cols[1]),
		}
		if len(cols) > 2 {
			row.CIN = strings.TrimSpace(cols[2])
		}
		if len(cols) > 3 {
			row.Phone = strings.TrimSpace(cols[3])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func exportRow(rec record.Record) []string {
	phone := ""
	if rec.Phone != nil {
		phone = *rec.Phone
	}
	verified := "Non"
	if rec.PhoneVerified {
		verified = "Oui"
	}
	modifiedBy := rec.LastModifiedBy
	if modifiedBy == "" {
		modifiedBy = "System"
	}
	return []string{
		strconv.FormatInt(rec.ID, 10),
		rec.Contract,
		rec.Nom,
		rec.CIN,
		phone,
		verified,
		modifiedBy,
	}
}
