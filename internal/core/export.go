package core

// export.go renders a statement's royalties back to CSV, plus an XLSX copy for
// people who open exports in a spreadsheet.

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	exportSheet = "Statement"
)

// amountColumns are the 0-based export columns holding money or ratios.
var amountColumns = map[int]bool{7: true, 8: true, 9: true}

// ExportTable is a rendered statement: one record per royalty plus totals.
type ExportTable struct {
	Lines            [][]string
	TotalDistributed decimal.Decimal
	TotalFinal       decimal.Decimal
}

// BuildExport renders rows. Amounts are fixed two-decimal text, nulls are
// empty, and null amounts count as zero in the totals.
func BuildExport(rows []ExportRow) ExportTable {
	t := ExportTable{
		Lines:            make([][]string, 0, len(rows)),
		TotalDistributed: decimal.Zero,
		TotalFinal:       decimal.Zero,
	}
	for _, r := range rows {
		t.Lines = append(t.Lines, []string{
			r.WorkID,
			r.WorkTitle,
			JoinWriters(r.Writers),
			r.RightType,
			r.RightTypeGroup,
			r.Territory,
			r.BatchCode,
			formatAmount(r.DistributedAmount),
			DisplayCoefficient(r.DistributedAmount, r.FinalDistributedAmount).StringFixed(2),
			formatAmount(r.FinalDistributedAmount),
			formatDate(r.PeriodStart),
			formatDate(r.PeriodEnd),
			r.RecordingArtist,
			r.SourceName,
		})
		if r.DistributedAmount.Valid {
			t.TotalDistributed = t.TotalDistributed.Add(r.DistributedAmount.Decimal)
		}
		if r.FinalDistributedAmount.Valid {
			t.TotalFinal = t.TotalFinal.Add(r.FinalDistributedAmount.Decimal)
		}
	}
	return t
}

// Records returns header, royalty lines and the TOTAL row.
func (t ExportTable) Records() [][]string {
	total := make([]string, len(ExportColumns))
	total[0] = TotalLabel
	total[7] = t.TotalDistributed.StringFixed(2)
	total[9] = t.TotalFinal.StringFixed(2)

	out := make([][]string, 0, len(t.Lines)+2)
	out = append(out, ExportColumns)
	out = append(out, t.Lines...)
	return append(out, total)
}

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// WriteCSV writes the table as CSV.
func WriteCSV(w io.Writer, t ExportTable) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the table as a single-sheet workbook. Amount cells are
// numeric with two decimals.
func WriteXLSX(w io.Writer, t ExportTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	records := t.Records()
	for r, rec := range records {
		for c, v := range rec {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if r > 0 && amountColumns[c] && v != "" {
				d, err := decimal.NewFromString(v)
				if err != nil {
					return fmt.Errorf("cell %s: %w", cell, err)
				}
				fv, _ := d.Float64()
				if err := f.SetCellFloat(exportSheet, cell, fv, 2, 64); err != nil {
					return err
				}
				if err := f.SetCellStyle(exportSheet, cell, cell, amountStyle); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetRowStyle(exportSheet, 1, 1, headerStyle); err != nil {
		return err
	}
	// Bold TOTAL row as well.
	if err := f.SetRowStyle(exportSheet, len(records), len(records), headerStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// ExportFileName is the artifact name for a statement's CSV.
func ExportFileName(st Statement) string {
	return fmt.Sprintf("statement_Q%d_%d_%s.csv", st.FiscalQuarter, st.FiscalYear, st.ID)
}

func exportKey(st Statement) string {
	return "exports/" + ExportFileName(st)
}

func xlsxKey(csvKey string) string {
	return strings.TrimSuffix(csvKey, ".csv") + ".xlsx"
}

// ExportResult describes a generated export.
type ExportResult struct {
	Key              string          `json:"key"`
	XLSXKey          string          `json:"xlsx_key"`
	Rows             int             `json:"rows"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	TotalFinal       decimal.Decimal `json:"total_final"`
}

// ExportStatement renders the statement's assigned royalties, stores the CSV
// and XLSX artifacts and records the CSV key on the statement.
func (s *Service) ExportStatement(ctx context.Context, id uuid.UUID) (ExportResult, error) {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return ExportResult{}, err
	}
	rows, err := s.store.StatementExportRows(ctx, id)
	if err != nil {
		return ExportResult{}, fmt.Errorf("load export rows: %w", err)
	}
	table := BuildExport(rows)

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, table); err != nil {
		return ExportResult{}, err
	}
	var xlsxBuf bytes.Buffer
	if err := WriteXLSX(&xlsxBuf, table); err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{
		Key:              exportKey(st),
		Rows:             len(rows),
		TotalDistributed: table.TotalDistributed,
		TotalFinal:       table.TotalFinal,
	}
	res.XLSXKey = xlsxKey(res.Key)

	if err := s.files.Put(ctx, res.Key, &csvBuf, ContentTypeCSV); err != nil {
		return ExportResult{}, fmt.Errorf("store export: %w", err)
	}
	if err := s.files.Put(ctx, res.XLSXKey, &xlsxBuf, ContentTypeXLSX); err != nil {
		return ExportResult{}, fmt.Errorf("store xlsx export: %w", err)
	}
	if err := s.store.SetStatementExport(ctx, id, res.Key); err != nil {
		return ExportResult{}, fmt.Errorf("record export: %w", err)
	}

	s.notify(ctx, "statement", id, st.Status)
	slog.Info("statement exported",
		"statement_id", id,
		"rows", res.Rows,
		"key", res.Key,
		"total_final", res.TotalFinal.StringFixed(2),
	)
	return res, nil
}

// OpenExport opens a statement's stored export. format is "csv" or "xlsx".
// The caller closes the reader.
func (s *Service) OpenExport(ctx context.Context, id uuid.UUID, format string) (io.ReadCloser, string, string, error) {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if st.ExportKey == "" {
		return nil, "", "", ErrNoExport
	}

	key, name, ctype := st.ExportKey, ExportFileName(st), ContentTypeCSV
	if strings.EqualFold(format, "xlsx") {
		key, name, ctype = xlsxKey(key), xlsxKey(name), ContentTypeXLSX
	}

	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, "", "", fmt.Errorf("open export: %w", err)
	}
	return rc, name, ctype, nil
}
