package service

import (
	"context"
	"fmt"
	"io"

	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var exportTracer = otel.Tracer("service/export")

// ExportService renders an owner's budgets and loans as a workbook.
type ExportService struct {
	queries *Queries
	logger  *zap.Logger
}

func NewExportService(queries *Queries, logger *zap.Logger) *ExportService {
	return &ExportService{queries: queries, logger: logger}
}

var exportHeaders = []any{"Entry", "Capacity", "Consumed", "Remaining", "Item", "Amount", "Created"}

// WriteWorkbook writes one sheet per entry kind with a row per item. Entries
// without items get a single row with empty item cells.
func (s *ExportService) WriteWorkbook(ctx context.Context, ownerID string, w io.Writer) error {
	ctx, span := exportTracer.Start(ctx, "ExportService.WriteWorkbook")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, kind := range domain.Kinds() {
		sheet := sheetName(kind)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		if err := s.writeSheet(ctx, f, sheet, kind, ownerID); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		s.logger.Error("export write failed", zap.String("owner_id", ownerID), zap.Error(err))
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (s *ExportService) writeSheet(ctx context.Context, f *excelize.File, sheet string, kind domain.Kind, ownerID string) error {
	if err := f.SetSheetRow(sheet, "A1", &exportHeaders); err != nil {
		return err
	}

	entries, err := s.queries.ListEntries(ctx, kind, ownerID, 0)
	if err != nil {
		return err
	}

	row := 2
	for _, summary := range entries {
		e, err := s.queries.GetEntry(ctx, kind, summary.EntryID(), ownerID)
		if err != nil {
			return err
		}

		base := []any{e.EntryName(), e.Capacity().InexactFloat64(), e.Consumed().InexactFloat64(), e.Remaining().InexactFloat64()}
		items := e.Items()
		if len(items) == 0 {
			cells := append(base, "", "", "")
			if err := setRow(f, sheet, row, cells); err != nil {
				return err
			}
			row++
			continue
		}
		for _, it := range items {
			cells := append(append([]any{}, base...), it.Name, it.Amount.InexactFloat64(), it.CreatedAt.Format("2006-01-02"))
			if err := setRow(f, sheet, row, cells); err != nil {
				return err
			}
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "E", "E", 24)
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func sheetName(kind domain.Kind) string {
	switch kind {
	case domain.KindLoan:
		return "Loans"
	default:
		return "Budgets"
	}
}
