package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	errMissing      = errors.New("required value is missing")
	errBadDate      = errors.New("unparseable date")
	errBadAmount    = errors.New("non-numeric amount")
	errNegative     = errors.New("negative amount not allowed")
	errWrongCompany = errors.New("record belongs to another company")
)

// Normalizer turns a raw record of one origin into a canonical record.
type Normalizer interface {
	Normalize(rec model.SourceRecord) (model.CanonicalRecord, error)
}

// NormalizerFor picks the normalizer for an origin.
func NormalizerFor(origin model.Origin, company model.CompanyProfile) Normalizer {
	if origin == model.OriginAuthoritative {
		return &StructuredNormalizer{company: company}
	}
	return &TabularNormalizer{company: company}
}

// TabularNormalizer reads spreadsheet rows through the company column map
// and its date layouts.
type TabularNormalizer struct {
	company model.CompanyProfile
}

// NewTabularNormalizer creates a normalizer for company's spreadsheets.
func NewTabularNormalizer(company model.CompanyProfile) *TabularNormalizer {
	return &TabularNormalizer{company: company}
}

// Normalize implements Normalizer.
func (n *TabularNormalizer) Normalize(rec model.SourceRecord) (model.CanonicalRecord, error) {
	cols := n.company.Columns
	get := func(field, header string) string {
		if v, ok := lookupField(rec.Fields, header); ok {
			return v
		}
		return rec.Fields[field]
	}

	return build(rec, n.company, recordValues{
		document:     get(FieldDocument, cols.Document),
		counterparty: get(FieldCounterparty, cols.Counterparty),
		date:         get(FieldDate, cols.Date),
		amount:       get(FieldAmount, cols.Amount),
		description:  get(FieldDescription, cols.Description),
	}, func(s string) (time.Time, error) {
		return parseTabularDate(s, n.company.Layouts())
	}, ParseAmount)
}

// StructuredNormalizer reads authoritative records whose fields use the
// canonical keys and whose dates are ISO-8601.
type StructuredNormalizer struct {
	company model.CompanyProfile
}

// NewStructuredNormalizer creates a normalizer for company's authoritative records.
func NewStructuredNormalizer(company model.CompanyProfile) *StructuredNormalizer {
	return &StructuredNormalizer{company: company}
}

// Normalize implements Normalizer. A plate found in the invoice's free text
// is kept unless the company excludes the issuer.
func (n *StructuredNormalizer) Normalize(rec model.SourceRecord) (model.CanonicalRecord, error) {
	out, err := build(rec, n.company, recordValues{
		document:     rec.Fields[FieldDocument],
		counterparty: rec.Fields[FieldCounterparty],
		date:         rec.Fields[FieldDate],
		amount:       rec.Fields[FieldAmount],
		description:  rec.Fields[FieldDescription],
	}, parseISODate, parseStructuredAmount)
	if err != nil {
		return out, err
	}
	if note := rec.Fields[FieldNote]; note != "" && !issuerExcluded(n.company, out.Description, out.Counterparty) {
		out.Plate, _ = ExtractPlate(note)
	}
	return out, nil
}

type recordValues struct {
	document     string
	counterparty string
	date         string
	amount       string
	description  string
}

func build(
	rec model.SourceRecord,
	company model.CompanyProfile,
	v recordValues,
	parseDate func(string) (time.Time, error),
	parseAmount func(string) (decimal.Decimal, error),
) (model.CanonicalRecord, error) {
	fail := func(field, value string, err error) (model.CanonicalRecord, error) {
		return model.CanonicalRecord{}, &common.MalformedRecordError{
			Position: rec.Position.String(),
			Field:    field,
			Value:    value,
			Err:      err,
		}
	}

	if rec.Company != "" && rec.Company != company.ID {
		return fail("company", rec.Company, errWrongCompany)
	}

	document := NormalizeDocument(v.document)
	if document == "" {
		return fail(FieldDocument, v.document, errMissing)
	}
	counterparty := NormalizeCounterparty(v.counterparty)
	if counterparty == "" {
		return fail(FieldCounterparty, v.counterparty, errMissing)
	}
	if strings.TrimSpace(v.date) == "" {
		return fail(FieldDate, v.date, errMissing)
	}
	date, err := parseDate(v.date)
	if err != nil {
		return fail(FieldDate, v.date, err)
	}
	if strings.TrimSpace(v.amount) == "" {
		return fail(FieldAmount, v.amount, errMissing)
	}
	amount, err := parseAmount(v.amount)
	if err != nil {
		return fail(FieldAmount, v.amount, err)
	}
	if amount.IsNegative() && !company.AllowNegative {
		return fail(FieldAmount, v.amount, errNegative)
	}

	src := rec
	return model.CanonicalRecord{
		Document:     document,
		Counterparty: counterparty,
		Date:         date,
		Amount:       amount,
		Origin:       rec.Origin,
		Company:      company.ID,
		Description:  strings.TrimSpace(v.description),
		Details:      rec.Details,
		Source:       &src,
	}, nil
}

// NormalizeDocument trims a document number. Whole numbers rendered with a
// trailing ".0" by spreadsheet tools are reduced to their digits.
func NormalizeDocument(s string) string {
	s = strings.TrimSpace(s)
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" && isDigits(whole) {
		return whole
	}
	return s
}

// NormalizeCounterparty canonicalizes a tax identifier: trimmed, without
// dashes or spaces, upper-cased.
func NormalizeCounterparty(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("-", "", " ", "", "\u00a0", "").Replace(s)
	return strings.ToUpper(s)
}

// ParseAmount parses a monetary amount into a fixed-point decimal. Currency
// symbols, codes and spaces are ignored. A single leading sign or enclosing
// parentheses mark the sign. When both '.' and ',' appear the rightmost is
// the decimal separator. A separator that repeats groups thousands, and so
// does a lone one between a short integer part and exactly three digits.
// Thousands groups must hold three digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if containsLetterDigitMix(s) {
		return decimal.Zero, errBadAmount
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+':
			b.WriteRune(r)
		case r == ' ', r == '\u00a0', r == '\'', r == '$', r == '€', r == '₡', r == '£':
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			// currency codes such as CRC or USD
		default:
			return decimal.Zero, errBadAmount
		}
	}
	body := b.String()
	if body != "" && (body[0] == '-' || body[0] == '+') {
		if body[0] == '-' {
			if negative {
				return decimal.Zero, errBadAmount
			}
			negative = true
		}
		body = body[1:]
	}
	if body == "" || strings.ContainsAny(body, "+-") {
		return decimal.Zero, errBadAmount
	}

	intPart, frac, err := splitAmount(body)
	if err != nil {
		return decimal.Zero, err
	}
	digits := intPart
	if frac != "" {
		digits += "." + frac
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, errBadAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// splitAmount separates an unsigned amount into its integer digits and
// fraction digits, checking thousands grouping.
func splitAmount(body string) (string, string, error) {
	dots := strings.Count(body, ".")
	commas := strings.Count(body, ",")

	var thousands, dec byte
	switch {
	case dots > 0 && commas > 0:
		thousands, dec = ',', '.'
		if strings.LastIndexByte(body, ',') > strings.LastIndexByte(body, '.') {
			thousands, dec = '.', ','
		}
	case dots > 1:
		thousands = '.'
	case commas > 1:
		thousands = ','
	case dots == 1 || commas == 1:
		sep := byte('.')
		if commas == 1 {
			sep = ','
		}
		i := strings.IndexByte(body, sep)
		if len(body)-i-1 == 3 && i <= 3 && body[0] != '0' {
			thousands = sep
		} else {
			dec = sep
		}
	}

	intPart, frac := body, ""
	if dec != 0 {
		i := strings.IndexByte(body, dec)
		if strings.IndexByte(body[i+1:], dec) >= 0 {
			return "", "", errBadAmount
		}
		intPart, frac = body[:i], body[i+1:]
		if frac == "" || !allDigits(frac) {
			return "", "", errBadAmount
		}
	}
	if intPart == "" {
		return "", "", errBadAmount
	}
	if thousands == 0 {
		if !allDigits(intPart) {
			return "", "", errBadAmount
		}
		return intPart, frac, nil
	}

	groups := strings.Split(intPart, string(thousands))
	for i, g := range groups {
		if !allDigits(g) || (i == 0 && len(g) > 3) || (i > 0 && len(g) != 3) {
			return "", "", errBadAmount
		}
	}
	return strings.Join(groups, ""), frac, nil
}

// parseStructuredAmount reads machine-written amounts such as "150.00000".
func parseStructuredAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errBadAmount
	}
	return d, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// containsLetterDigitMix reports letters between digits, as in "1O0".
func containsLetterDigitMix(s string) bool {
	first := strings.IndexAny(s, "0123456789")
	if first < 0 {
		return false
	}
	last := strings.LastIndexAny(s, "0123456789")
	for _, r := range s[first : last+1] {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			return true
		}
	}
	return false
}

func parseTabularDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	if t, err := parseISODate(s); err == nil {
		return t, nil
	}
	// Raw workbook cells hold dates as serial numbers.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: expected one of %s", errBadDate, strings.Join(layouts, ", "))
}

// parseISODate takes the calendar date as written, ignoring any time or
// zone suffix.
func parseISODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeAll normalizes every record, collecting malformed ones as
// rejections instead of failing.
func NormalizeAll(records []model.SourceRecord, n Normalizer) ([]model.CanonicalRecord, []model.Rejection) {
	canonical := make([]model.CanonicalRecord, 0, len(records))
	var rejections []model.Rejection
	for _, rec := range records {
		c, err := n.Normalize(rec)
		if err != nil {
			rejections = append(rejections, model.Rejection{
				Position: rec.Position,
				Origin:   rec.Origin,
				Detail:   err.Error(),
			})
			continue
		}
		canonical = append(canonical, c)
	}
	return canonical, rejections
}
