package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// companyConfig is the on-disk shape of one entry under companies:.
// Amounts are strings so they never pass through float64.
type companyConfig struct {
	Columns         *model.ColumnMap `mapstructure:"columns"`
	DetailLimit     *int             `mapstructure:"detail_limit"`
	ID              string           `mapstructure:"id"`
	Name            string           `mapstructure:"name"`
	BasePath        string           `mapstructure:"base_path"`
	ActivityCode    string           `mapstructure:"activity_code"`
	ReviewThreshold string           `mapstructure:"review_threshold"`
	Tolerance       string           `mapstructure:"tolerance"`
	Spreadsheets    []string         `mapstructure:"spreadsheets"`
	DateLayouts     []string         `mapstructure:"date_layouts"`
	ExcludedIssuers []string         `mapstructure:"excluded_issuers"`
	AllowNegative   bool             `mapstructure:"allow_negative"`
}

// LoadCompanies decodes the companies list from viper into profiles.
func LoadCompanies() ([]model.CompanyProfile, error) {
	return DecodeCompanies(viper.GetViper())
}

// DecodeCompanies decodes the companies list from v. Entries with invalid
// settings are kept so the run can report them as failed companies; the load
// only fails when no entry is usable or an entry has no identifier.
func DecodeCompanies(v *viper.Viper) ([]model.CompanyProfile, error) {
	var raw []companyConfig
	if err := v.UnmarshalKey("companies", &raw); err != nil {
		return nil, fmt.Errorf("%w: companies: %w", common.ErrInvalidConfig, err)
	}
	if len(raw) == 0 {
		return nil, &common.ConfigurationError{Field: "companies", Reason: "no companies configured"}
	}

	profiles := make([]model.CompanyProfile, 0, len(raw))
	var firstErr error
	invalid := 0
	for i, rc := range raw {
		profile := rc.profile()
		if strings.TrimSpace(profile.ID) == "" {
			return nil, fmt.Errorf("companies[%d]: %w", i, profile.Validate())
		}
		if err := profile.Validate(); err != nil {
			slog.Warn("Company configuration is invalid", "company", profile.ID, "error", err)
			invalid++
			if firstErr == nil {
				firstErr = fmt.Errorf("companies[%d]: %w", i, err)
			}
		}
		profiles = append(profiles, profile)
	}
	if invalid == len(profiles) {
		return nil, fmt.Errorf("no usable companies: %w", firstErr)
	}
	return profiles, nil
}

func (c companyConfig) profile() model.CompanyProfile {
	id := strings.TrimSpace(c.ID)
	threshold, thresholdErr := parseAmount(id, "review_threshold", c.ReviewThreshold)
	tolerance, toleranceErr := parseAmount(id, "tolerance", c.Tolerance)

	columns := model.DefaultColumns()
	if c.Columns != nil {
		columns = mergeColumns(columns, *c.Columns)
	}

	detailLimit := model.DefaultDetailLimit
	if c.DetailLimit != nil {
		detailLimit = *c.DetailLimit
	}

	spreadsheets := make([]string, 0, len(c.Spreadsheets))
	for _, s := range c.Spreadsheets {
		spreadsheets = append(spreadsheets, ExpandPath(s))
	}

	return model.CompanyProfile{
		ID:               id,
		Name:             strings.TrimSpace(c.Name),
		BasePathTemplate: c.BasePath,
		ActivityCode:     strings.TrimSpace(c.ActivityCode),
		ReviewThreshold:  threshold,
		Tolerance:        tolerance,
		Columns:          columns,
		SpreadsheetPaths: spreadsheets,
		DateLayouts:      c.DateLayouts,
		DetailLimit:      detailLimit,
		AllowNegative:    c.AllowNegative,
		ExcludedIssuers:  c.ExcludedIssuers,
		DecodeErr:        errors.Join(thresholdErr, toleranceErr),
	}
}

func parseAmount(company, field, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &common.ConfigurationError{
			Company: company,
			Field:   field,
			Reason:  fmt.Sprintf("%q is not a decimal amount", value),
		}
	}
	return d, nil
}

// mergeColumns overlays the configured header names on the defaults.
func mergeColumns(base, override model.ColumnMap) model.ColumnMap {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&base.Document, override.Document)
	set(&base.Counterparty, override.Counterparty)
	set(&base.Date, override.Date)
	set(&base.Amount, override.Amount)
	set(&base.Description, override.Description)
	base.Company = override.Company
	base.CompanyValue = override.CompanyValue
	return base
}

// RunConfig holds the run.* settings.
type RunConfig struct {
	OutputDir string
	Workers   int
	Store     bool
	Sheets    bool
}

// LoadRunConfig reads run.* settings from viper with defaults applied.
func LoadRunConfig() RunConfig {
	cfg := RunConfig{
		OutputDir: ExpandPath(viper.GetString("run.output_dir")),
		Workers:   viper.GetInt("run.workers"),
		Store:     viper.GetBool("run.store"),
		Sheets:    viper.GetBool("run.sheets"),
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return cfg
}
