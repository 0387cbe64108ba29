package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/core/ports"
)

const sheet = "Receipts"

// Service materialises the filtered server-side archive into an XLSX
// workbook, walking the full list page by page.
type Service struct {
	gateway  ports.ReceiptGateway
	pageSize int
	logger   *slog.Logger
}

func NewService(gateway ports.ReceiptGateway, pageSize int, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, pageSize: pageSize, logger: logger}
}

// Export writes the workbook to path and returns the exported row
// count.
func (s *Service) Export(ctx context.Context, filter domain.Filter, sort domain.Sort, path string) (int, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return 0, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Date",
		"Vendor",
		"Amount",
		"Category",
		"Business Number",
		"Status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	row := 2
	totalAmount := decimal.Zero
	for page := 1; ; page++ {
		result, err := s.gateway.List(ctx, filter, sort, page, s.pageSize)
		if err != nil {
			return 0, fmt.Errorf("list receipts page %d: %w", page, err)
		}
		for _, r := range result.Items {
			if !r.Date.IsZero() {
				write(1, row, r.Date.Format("2006-01-02"))
			} else {
				write(1, row, "")
			}
			write(2, row, r.Vendor)
			write(3, row, r.Amount.String())
			write(4, row, string(r.Category))
			write(5, row, r.BusinessNumber)
			write(6, row, string(r.Status))
			totalAmount = totalAmount.Add(r.Amount)
			row++
		}
		if !result.HasMore {
			break
		}
	}

	exported := row - 2
	write(2, row, "Total")
	write(3, row, totalAmount.String())

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info("archive_exported",
		"path", path,
		"rows", exported,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return exported, nil
}
