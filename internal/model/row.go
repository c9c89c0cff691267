package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RowHeader names the columns of a flattened classification row.
var RowHeader = []string{
	"Origin", "Source", "Position", "Document", "Counterparty", "Date",
	"Amount", "Description", "Paired Document", "Paired Date",
	"Paired Amount", "Reason", "Delta", "Activity Code", "Plate", "Details",
}

// DetailSeparator joins invoice detail lines in a single cell.
const DetailSeparator = " | "

// Row is a classification result flattened for reports, exports and
// storage.
type Row struct {
	Date           time.Time
	PairedDate     time.Time
	Amount         decimal.Decimal
	PairedAmount   decimal.NullDecimal
	Delta          decimal.NullDecimal
	Company        string
	Bucket         Bucket
	Reason         Reason
	MatchReason    Reason
	Origin         Origin
	Source         string
	Document       string
	Counterparty   string
	Description    string
	PairedDocument string
	ActivityCode   string
	Plate          string
	Details        string
	Index          int
}

// RowOf flattens res for company.
func RowOf(company CompanyProfile, res ClassificationResult) Row {
	pos := res.Record.Position()
	row := Row{
		Company:      company.ID,
		ActivityCode: company.ActivityCode,
		Bucket:       res.Bucket,
		Reason:       res.Reason,
		MatchReason:  res.MatchReason,
		Origin:       res.Record.Origin,
		Source:       pos.Source,
		Index:        pos.Index,
		Document:     res.Record.Document,
		Counterparty: res.Record.Counterparty,
		Date:         res.Record.Date,
		Amount:       res.Record.Amount,
		Description:  res.Record.Description,
	}
	if res.Paired != nil {
		row.PairedDocument = res.Paired.Document
		row.PairedDate = res.Paired.Date
		row.PairedAmount = decimal.NewNullDecimal(res.Paired.Amount)
	}
	if res.Delta != nil {
		row.Delta = decimal.NewNullDecimal(*res.Delta)
	}
	if inv := invoiceOf(res); inv != nil {
		row.Plate = inv.Plate
		row.Details = strings.Join(inv.Details, DetailSeparator)
	}
	return row
}

// invoiceOf returns the authoritative side of res, if any.
func invoiceOf(res ClassificationResult) *CanonicalRecord {
	if res.Record.Origin == OriginAuthoritative {
		return &res.Record
	}
	if res.Paired != nil && res.Paired.Origin == OriginAuthoritative {
		return res.Paired
	}
	return nil
}

// Rows flattens every result of r placed in bucket.
func (r CompanyResult) Rows(bucket Bucket) []Row {
	results := r.Bucket(bucket)
	rows := make([]Row, 0, len(results))
	for _, res := range results {
		rows = append(rows, RowOf(r.Company, res))
	}
	return rows
}

// Position returns the row's original record position.
func (r Row) Position() Position {
	return Position{Source: r.Source, Index: r.Index}
}

// Cells renders the row in RowHeader order. Dates use ISO format and
// amounts two decimals; absent paired values are empty.
func (r Row) Cells() []string {
	cells := []string{
		string(r.Origin),
		r.Source,
		r.Position().String(),
		r.Document,
		r.Counterparty,
		formatDate(r.Date),
		r.Amount.StringFixed(2),
		r.Description,
		r.PairedDocument,
		formatDate(r.PairedDate),
		"",
		string(r.Reason),
		"",
		r.ActivityCode,
		r.Plate,
		r.Details,
	}
	if r.PairedAmount.Valid {
		cells[10] = r.PairedAmount.Decimal.StringFixed(2)
	}
	if r.Delta.Valid {
		cells[12] = r.Delta.Decimal.StringFixed(2)
	}
	return cells
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
