// Package export renders a user's subscriptions as CSV, XLSX or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"mysubs/internal/billing"
	"mysubs/internal/core"
)

type Format string

const (
	CSV    Format = "csv"
	XLSX   Format = "xlsx"
	JSON   Format = "json"
	Sheets Format = "sheets"
)

// SheetName is the worksheet holding the rows in XLSX and Google Sheets exports.
const SheetName = "구독 목록"

// Header is the first row of every tabular export.
var Header = []string{
	"이름", "가격", "통화", "월간 환산 (원)", "결제 주기", "결제일",
	"카테고리", "상태", "시작일", "메모", "태그",
}

// ParseFormat accepts a format name case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, XLSX, JSON, Sheets:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case JSON:
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// FileName is the download name for an export taken at t.
func (f Format) FileName(t time.Time) string {
	return fmt.Sprintf("mysubs_export_%s.%s", t.Format(core.DateLayout), f)
}

// Row is one subscription flattened for a spreadsheet.
type Row struct {
	Name       string
	Price      float64
	Currency   core.Currency
	MonthlyKRW float64
	Cycle      string
	BillingDay int
	Category   string
	Status     string
	StartDate  string
	Memo       string
	Tags       string
}

func (r Row) Strings() []string {
	return []string{
		r.Name,
		decimal.NewFromFloat(r.Price).String(),
		string(r.Currency),
		strconv.FormatFloat(r.MonthlyKRW, 'f', 0, 64),
		r.Cycle,
		strconv.Itoa(r.BillingDay),
		r.Category,
		r.Status,
		r.StartDate,
		r.Memo,
		r.Tags,
	}
}

func (r Row) values() []any {
	return []any{
		r.Name, r.Price, string(r.Currency), r.MonthlyKRW, r.Cycle, r.BillingDay,
		r.Category, r.Status, r.StartDate, r.Memo, r.Tags,
	}
}

// Rows flattens subs in their given order. Monthly amounts are converted
// with rate and rounded to whole won.
func Rows(subs []core.Subscription, rate float64) []Row {
	rows := make([]Row, 0, len(subs))
	for _, s := range subs {
		status := "비활성"
		if s.IsActive {
			status = "활성"
		}
		rows = append(rows, Row{
			Name:       s.Name,
			Price:      s.Price,
			Currency:   s.Currency,
			MonthlyKRW: core.RoundAmount(billing.MonthlyEquivalent(s, rate)),
			Cycle:      s.BillingCycle.Label(),
			BillingDay: s.BillingDay,
			Category:   s.Category.Label(),
			Status:     status,
			StartDate:  s.StartDate.String(),
			Memo:       s.Memo,
			Tags:       strings.Join(s.Tags, ", "),
		})
	}
	return rows
}

// Table returns the header followed by every row as strings.
func Table(subs []core.Subscription, rate float64) [][]string {
	out := [][]string{Header}
	for _, r := range Rows(subs, rate) {
		out = append(out, r.Strings())
	}
	return out
}

const bom = "\ufeff"

// WriteCSV writes a UTF-8 CSV with a byte order mark so spreadsheet apps
// detect the encoding.
func WriteCSV(w io.Writer, subs []core.Subscription, rate float64) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Table(subs, rate)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with one data sheet followed by the monthly
// and yearly totals of the active subscriptions.
func WriteXLSX(w io.Writer, subs []core.Subscription, rate float64) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#F5F5F5"}},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "K1", header); err != nil {
		return err
	}

	rows := Rows(subs, rate)
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := r.values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	monthly := core.RoundAmount(billing.MonthlyTotal(subs, rate))
	totals := [][]any{
		{"월간 총 지출", nil, nil, monthly},
		{"연간 총 지출", nil, nil, monthly * 12},
	}
	total, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E8F5E9"}},
	})
	if err != nil {
		return err
	}
	for i, t := range totals {
		row := len(rows) + 2 + i
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(Header), row)
		if err := f.SetSheetRow(SheetName, first, &t); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, first, last, total); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Document is the JSON export body.
type Document struct {
	ExportDate          time.Time           `json:"exportDate"`
	TotalSubscriptions  int                 `json:"totalSubscriptions"`
	ActiveSubscriptions int                 `json:"activeSubscriptions"`
	Subscriptions       []core.Subscription `json:"subscriptions"`
}

// WriteJSON writes the full records, indented, stamped with now.
func WriteJSON(w io.Writer, subs []core.Subscription, now time.Time) error {
	if subs == nil {
		subs = []core.Subscription{}
	}
	doc := Document{
		ExportDate:          now.UTC(),
		TotalSubscriptions:  len(subs),
		ActiveSubscriptions: len(billing.Active(subs)),
		Subscriptions:       subs,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Write dispatches to the writer for format. Sheets is not a file format
// and is rejected.
func Write(w io.Writer, format Format, subs []core.Subscription, rate float64, now time.Time) error {
	switch format {
	case CSV:
		return WriteCSV(w, subs, rate)
	case XLSX:
		return WriteXLSX(w, subs, rate)
	case JSON:
		return WriteJSON(w, subs, now)
	}
	return fmt.Errorf("format %q cannot be written to a file", format)
}
