// Package loader reads spreadsheet and authoritative record sources and
// normalizes them into canonical records.
package loader

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical field keys used by sources that do not carry their own headers.
const (
	FieldDocument     = "document"
	FieldCounterparty = "counterparty"
	FieldDate         = "date"
	FieldAmount       = "amount"
	FieldDescription  = "description"
	FieldNote         = "note"
)

// Source yields raw records of one origin.
type Source interface {
	Name() string
	Origin() model.Origin
	Load(ctx context.Context, company model.CompanyProfile) ([]model.SourceRecord, error)
}

func unreadable(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrSourceUnreadable, name, err)
}

// FoldKey reduces a header or name to a case- and accent-insensitive form.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}

// lookupField finds a field by header, ignoring case, accents and spacing.
func lookupField(fields map[string]string, header string) (string, bool) {
	if header == "" {
		return "", false
	}
	if v, ok := fields[header]; ok {
		return v, true
	}
	want := FoldKey(header)
	for k, v := range fields {
		if FoldKey(k) == want {
			return v, true
		}
	}
	return "", false
}

// rowRecords turns a header row plus data rows into source records,
// skipping blank rows and rows filtered out by the company column. index
// maps a data row offset to its 1-based position in the source.
func rowRecords(name string, company model.CompanyProfile, header []string, rows [][]string, index func(int) int) []model.SourceRecord {
	filterCol := -1
	if company.Columns.Company != "" {
		want := FoldKey(company.Columns.Company)
		for i, h := range header {
			if FoldKey(h) == want {
				filterCol = i
				break
			}
		}
	}
	wantValue := FoldKey(company.Columns.CompanyValue)

	var records []model.SourceRecord
	for i, row := range rows {
		if blank(row) {
			continue
		}
		if company.Columns.Company != "" {
			if filterCol < 0 || filterCol >= len(row) || FoldKey(row[filterCol]) != wantValue {
				continue
			}
		}
		fields := make(map[string]string, len(header))
		for c, h := range header {
			if strings.TrimSpace(h) == "" {
				continue
			}
			if c < len(row) {
				fields[h] = strings.TrimSpace(row[c])
			} else {
				fields[h] = ""
			}
		}
		records = append(records, model.SourceRecord{
			Origin:   model.OriginSpreadsheet,
			Company:  company.ID,
			Position: model.Position{Source: name, Index: index(i)},
			Fields:   fields,
		})
	}
	return records
}

// headerIndex returns the offset of the first non-blank row.
func headerIndex(rows [][]string) int {
	for i, row := range rows {
		if !blank(row) {
			return i
		}
	}
	return -1
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
