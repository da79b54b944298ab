package export

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

const (
	SheetRequests   = "Requests"
	SheetOrderLines = "Order Lines"
)

// Row is one processed file.
type Row struct {
	Source string
	Result entity.ExtractionResult
	Err    error
}

// Service renders batch extraction output as XLSX.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

var requestHeaders = []string{
	"File",
	"Trace ID",
	"Status",
	"Accepted At",
	"Text Method",
	"Title",
	"Vendor",
	"VAT Number",
	"Total",
	"Shipping",
	"Tax",
	"Discount",
	"Computed Total",
	"Within Tolerance",
	"Missing Fields",
	"Recovered Fields",
	"Error",
}

var lineHeaders = []string{
	"File",
	"Line",
	"Description",
	"Unit",
	"Quantity",
	"Unit Price",
	"Line Total",
	"Consistent",
}

// RecordsXLSX returns a workbook with one "Requests" row per file and one
// "Order Lines" row per extracted line. Money is written in major units.
func (s *Service) RecordsXLSX(rows []Row) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetRequests); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetOrderLines); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	writeHeaders(f, SheetRequests, requestHeaders)
	writeHeaders(f, SheetOrderLines, lineHeaders)

	reqRow, lineRow, failed := 2, 2, 0
	for _, r := range rows {
		rec := r.Result.Record
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, reqRow)
			_ = f.SetCellValue(SheetRequests, cell, v)
		}

		write(1, r.Source)
		if r.Err != nil {
			failed++
			write(3, errorStatus(r.Err))
			write(17, truncate(r.Err.Error(), 300))
			reqRow++
			continue
		}

		write(2, rec.CorrelationID)
		write(3, "OK")
		write(4, string(r.Result.AcceptedAt))
		write(5, string(r.Result.TextMethod))
		write(6, rec.Title)
		write(7, rec.VendorName)
		write(8, rec.VATNumber)
		writeMoney(write, 9, rec.TotalPriceCents)
		writeMoney(write, 10, rec.ShippingCents)
		writeMoney(write, 11, rec.TaxCents)
		writeMoney(write, 12, rec.TotalDiscountCents)
		write(13, major(r.Result.Reconciliation.Computed))
		write(14, r.Result.Reconciliation.WithinTolerance)
		write(15, strings.Join(r.Result.Gap.Strings(), ", "))
		write(16, strings.Join(constants.AsStringSlice(r.Result.Recovered), ", "))

		for i, l := range rec.OrderLines {
			vals := []any{r.Source, i + 1, l.Description, l.Unit, l.Quantity,
				major(l.UnitPriceCents), major(l.TotalPriceCents), l.Consistent()}
			for col, v := range vals {
				cell, _ := excelize.CoordinatesToCellName(col+1, lineRow)
				_ = f.SetCellValue(SheetOrderLines, cell, v)
			}
			lineRow++
		}
		reqRow++
	}

	if reqRow > 2 {
		_ = f.SetCellStyle(SheetRequests, "I2", fmt.Sprintf("M%d", reqRow-1), money)
	}
	if lineRow > 2 {
		_ = f.SetCellStyle(SheetOrderLines, "F2", fmt.Sprintf("G%d", lineRow-1), money)
	}

	_ = f.SetColWidth(SheetRequests, "A", "A", 40)   // file
	_ = f.SetColWidth(SheetRequests, "B", "B", 38)   // trace
	_ = f.SetColWidth(SheetRequests, "F", "H", 28)   // title, vendor, vat
	_ = f.SetColWidth(SheetRequests, "I", "M", 14)   // amounts
	_ = f.SetColWidth(SheetRequests, "O", "Q", 30)   // fields, error
	_ = f.SetColWidth(SheetOrderLines, "A", "A", 40) // file
	_ = f.SetColWidth(SheetOrderLines, "C", "C", 48) // description
	_ = f.SetColWidth(SheetOrderLines, "E", "G", 14) // numbers

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"failed", failed,
		"order_lines", lineRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeMoney(write func(int, any), col int, cents *int64) {
	if cents == nil {
		return
	}
	write(col, major(*cents))
}

// major converts minor units to a float for display only.
func major(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

func errorStatus(err error) string {
	switch {
	case common.IsTimeout(err):
		return "TIMEOUT"
	case errors.Is(err, common.ErrNotProcurementDocument):
		return "REJECTED"
	case errors.Is(err, common.ErrInvalidInput):
		return "INVALID"
	default:
		return "FAILED"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
