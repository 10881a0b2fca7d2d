// Package transfer reads and writes batches of expenses as CSV or JSON.
//
// Imports produce services.NewExpense rows; ownership is never read from the
// file; the importing caller owns every row.
package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/services"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Header is the column order written on export. Import accepts these
// columns in any order and ignores the rest.
var Header = []string{"date", "amount", "category", "method", "notes"}

// ParseFormat maps a query value such as "csv" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON, "":
		return FormatJSON, nil
	default:
		return "", core.Validationf("unsupported format %q", s)
	}
}

// DetectFormat guesses the format of an upload from its content type and
// file name, falling back to JSON.
func DetectFormat(contentType, filename string) Format {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "csv"):
		return FormatCSV
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.EqualFold(filepath.Ext(filename), ".csv"):
		return FormatCSV
	default:
		return FormatJSON
	}
}

// Parse reads rows in the given format.
func Parse(r io.Reader, f Format) ([]services.NewExpense, error) {
	if f == FormatCSV {
		return ParseCSV(r)
	}
	return ParseJSON(r)
}

// ParseCSV reads a header row followed by one expense per line. The amount
// column is required; date, category, method and notes are optional.
func ParseCSV(r io.Reader) ([]services.NewExpense, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []services.NewExpense{}, nil
	}
	if err != nil {
		return nil, core.Validationf("read csv header: %v", err)
	}

	cols := map[string]int{}
	for i, name := range head {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := cols["amount"]; !ok {
		return nil, core.Validationf("csv header has no amount column")
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := []services.NewExpense{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.Validationf("line %d: %v", line, err)
		}
		if blank(rec) {
			continue
		}

		cents, err := core.ParseDecimalToCents(field(rec, "amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := services.NewExpense{
			Amount:   core.Money{Cents: cents},
			Category: field(rec, "category"),
			Method:   field(rec, "method"),
			Notes:    field(rec, "notes"),
		}
		if s := field(rec, "date"); s != "" {
			d, err := core.ParseDate(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row.Date = d
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseJSON reads a JSON array of expense objects. Unknown keys such as
// user_id are ignored.
func ParseJSON(r io.Reader) ([]services.NewExpense, error) {
	var rows []services.NewExpense
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return []services.NewExpense{}, nil
		}
		if errors.Is(err, core.ErrValidation) {
			return nil, err
		}
		return nil, core.Validationf("decode json: %v", err)
	}
	if rows == nil {
		rows = []services.NewExpense{}
	}
	return rows, nil
}

// Write encodes expenses in the given format.
func Write(w io.Writer, f Format, expenses []core.Expense) error {
	if f == FormatCSV {
		return WriteCSV(w, expenses)
	}
	return WriteJSON(w, expenses)
}

func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		rec := []string{e.Date.String(), e.Amount.String(), e.Category, e.Method, e.Notes}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(expenses)
}

// ContentType returns the MIME type for a format.
func ContentType(f Format) string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Filename is the download name used for an export.
func Filename(f Format) string {
	return "expenses." + string(f)
}
