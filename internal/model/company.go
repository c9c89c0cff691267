package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/shopspring/decimal"
)

// ColumnMap names the spreadsheet headers holding each canonical field.
// Column naming varies between companies.
type ColumnMap struct {
	Document     string `mapstructure:"document"`
	Counterparty string `mapstructure:"counterparty"`
	Date         string `mapstructure:"date"`
	Amount       string `mapstructure:"amount"`
	Description  string `mapstructure:"description"`

	// Company and CompanyValue restrict a shared spreadsheet to the rows
	// belonging to one company. Both are optional.
	Company      string `mapstructure:"company"`
	CompanyValue string `mapstructure:"company_value"`
}

// DefaultColumns returns the header names used by the cargador exports.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Document:     "Numero",
		Counterparty: "Proveedor",
		Date:         "Fecha Documento",
		Amount:       "Monto",
		Description:  "Notas",
	}
}

// DefaultDetailLimit is the detail line count above which a matched invoice
// goes to manual review when a company does not set its own.
const DefaultDetailLimit = 3

// DefaultDateLayouts are the spreadsheet date layouts tried in order.
var DefaultDateLayouts = []string{"02-01-2006", "02/01/2006", "2006-01-02"}

// CompanyProfile is the read-only configuration for one company.
type CompanyProfile struct {
	ReviewThreshold  decimal.Decimal
	Tolerance        decimal.Decimal
	Columns          ColumnMap
	ID               string
	Name             string
	BasePathTemplate string
	ActivityCode     string
	SpreadsheetPaths []string
	DateLayouts      []string
	DetailLimit      int
	AllowNegative    bool

	// ExcludedIssuers lists issuer names or identifiers whose invoices are
	// never searched for a plate.
	ExcludedIssuers []string

	// DecodeErr holds a problem found while reading the profile from
	// configuration. Validate reports it.
	DecodeErr error
}

// DisplayName returns the name used in reports.
func (c CompanyProfile) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Layouts returns the configured spreadsheet date layouts or the defaults.
func (c CompanyProfile) Layouts() []string {
	if len(c.DateLayouts) > 0 {
		return c.DateLayouts
	}
	return DefaultDateLayouts
}

// Validate checks the profile for problems that make the company unusable.
func (c CompanyProfile) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return &common.ConfigurationError{Field: "id", Reason: "company identifier is required"}
	}
	if c.DecodeErr != nil {
		return c.DecodeErr
	}
	fail := func(field, reason string) error {
		return &common.ConfigurationError{Company: c.ID, Field: field, Reason: reason}
	}
	if strings.ContainsAny(c.ID, `/\`) || strings.Contains(c.ID, "..") {
		return fail("id", "company identifier cannot contain path separators or '..'")
	}
	if strings.TrimSpace(c.BasePathTemplate) == "" {
		return fail("base_path", "base-path template is required")
	}
	if c.ReviewThreshold.IsNegative() {
		return fail("review_threshold", fmt.Sprintf("threshold %s cannot be negative", c.ReviewThreshold))
	}
	if c.Tolerance.IsNegative() {
		return fail("tolerance", fmt.Sprintf("tolerance %s cannot be negative", c.Tolerance))
	}
	if c.DetailLimit < 0 {
		return fail("detail_limit", fmt.Sprintf("detail limit %d cannot be negative", c.DetailLimit))
	}
	required := map[string]string{
		"columns.document":     c.Columns.Document,
		"columns.counterparty": c.Columns.Counterparty,
		"columns.date":         c.Columns.Date,
		"columns.amount":       c.Columns.Amount,
	}
	for _, field := range []string{"columns.document", "columns.counterparty", "columns.date", "columns.amount"} {
		if strings.TrimSpace(required[field]) == "" {
			return fail(field, "column mapping is required")
		}
	}
	if (c.Columns.Company == "") != (c.Columns.CompanyValue == "") {
		return fail("columns.company", "company column and company value must be set together")
	}
	return nil
}
