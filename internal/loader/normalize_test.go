package loader

import (
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCompany() model.CompanyProfile {
	return model.CompanyProfile{
		ID:               "ACME",
		BasePathTemplate: "/share/{year}/{month}/acme",
		Columns:          model.DefaultColumns(),
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "150.00", want: "150"},
		{name: "thousands comma", input: "1,234.56", want: "1234.56"},
		{name: "european", input: "1.234,56", want: "1234.56"},
		{name: "decimal comma", input: "150,5", want: "150.5"},
		{name: "lone thousands comma", input: "1,234", want: "1234"},
		{name: "multiple dots", input: "1.234.567", want: "1234567"},
		{name: "lone thousands dot", input: "1.234", want: "1234"},
		{name: "zero with three decimals", input: "0.125", want: "0.125"},
		{name: "long integer three decimals", input: "5650.000", want: "5650"},
		{name: "decimal dot two places", input: "1.50", want: "1.5"},
		{name: "leading plus", input: "+25", want: "25"},
		{name: "sign after symbol", input: "₡-1.000,00", want: "-1000"},
		{name: "currency symbol", input: "₡ 25 000,00", want: "25000"},
		{name: "currency code", input: "CRC 1,500.25", want: "1500.25"},
		{name: "dollar", input: "$99.99", want: "99.99"},
		{name: "negative", input: "-10.00", want: "-10"},
		{name: "parentheses", input: "(10.00)", want: "-10"},
		{name: "not numeric", input: "abc", wantErr: true},
		{name: "letters inside", input: "1O0", wantErr: true},
		{name: "only separators", input: ".,", wantErr: true},
		{name: "symbols", input: "12#4", wantErr: true},
		{name: "short dot groups", input: "1.5.3", wantErr: true},
		{name: "short comma groups", input: "1,2,3", wantErr: true},
		{name: "long thousands group", input: "1,2345.00", wantErr: true},
		{name: "oversized leading group", input: "1234,567.00", wantErr: true},
		{name: "two decimal separators", input: "1.234,5,6", wantErr: true},
		{name: "double minus", input: "--5", wantErr: true},
		{name: "trailing minus", input: "5-", wantErr: true},
		{name: "minus in parentheses", input: "(-5)", wantErr: true},
		{name: "inner minus", input: "1-000", wantErr: true},
		{name: "trailing separator", input: "150.", wantErr: true},
		{name: "leading separator", input: ",50", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNormalizeIdentifiers(t *testing.T) {
	assert.Equal(t, "3101123456", NormalizeCounterparty(" 3-101-123456 "))
	assert.Equal(t, "CR001", NormalizeCounterparty("cr-001"))
	assert.Equal(t, "12345", NormalizeDocument(" 12345.0 "))
	assert.Equal(t, "00100001010000000123", NormalizeDocument("00100001010000000123"))
	assert.Equal(t, "FA-12.5", NormalizeDocument("FA-12.5"))
}

func TestTabularNormalizer(t *testing.T) {
	n := NormalizerFor(model.OriginSpreadsheet, testCompany())
	require.IsType(t, &TabularNormalizer{}, n)

	rec := model.SourceRecord{
		Origin:   model.OriginSpreadsheet,
		Company:  "ACME",
		Position: model.Position{Source: "cargador.xlsx", Index: 2},
		Fields: map[string]string{
			"NÚMERO":          "12345",
			"proveedor":       "CR-001",
			"Fecha Documento": "10-05-2024",
			"Monto":           "150.00",
			"Notas":           "Office supplies",
		},
	}

	got, err := n.Normalize(rec)
	require.NoError(t, err)
	assert.Equal(t, "12345", got.Document)
	assert.Equal(t, "CR001", got.Counterparty)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), got.Date)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, "Office supplies", got.Description)
	assert.Equal(t, model.OriginSpreadsheet, got.Origin)
	require.NotNil(t, got.Source)
	assert.Equal(t, rec.Position, got.Source.Position)
}

func TestTabularNormalizer_DateForms(t *testing.T) {
	n := NewTabularNormalizer(testCompany())
	want := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	for _, value := range []string{"10-05-2024", "10/05/2024", "2024-05-10", "2024-05-10T08:30:00-06:00", "45422"} {
		t.Run(value, func(t *testing.T) {
			got, err := n.Normalize(model.SourceRecord{
				Origin: model.OriginSpreadsheet,
				Fields: map[string]string{
					"Numero": "1", "Proveedor": "X", "Fecha Documento": value, "Monto": "1",
				},
			})
			require.NoError(t, err)
			assert.Equal(t, want, got.Date)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{
			"Numero": "1", "Proveedor": "CR-001", "Fecha Documento": "10-05-2024", "Monto": "5.00",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]string)
		field  string
	}{
		{name: "missing document", mutate: func(f map[string]string) { delete(f, "Numero") }, field: FieldDocument},
		{name: "blank counterparty", mutate: func(f map[string]string) { f["Proveedor"] = " " }, field: FieldCounterparty},
		{name: "bad date", mutate: func(f map[string]string) { f["Fecha Documento"] = "May 10th" }, field: FieldDate},
		{name: "missing amount", mutate: func(f map[string]string) { f["Monto"] = "" }, field: FieldAmount},
		{name: "non numeric amount", mutate: func(f map[string]string) { f["Monto"] = "n/a" }, field: FieldAmount},
		{name: "negative amount", mutate: func(f map[string]string) { f["Monto"] = "-5" }, field: FieldAmount},
	}

	n := NewTabularNormalizer(testCompany())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := base()
			tt.mutate(fields)
			_, err := n.Normalize(model.SourceRecord{
				Origin:   model.OriginSpreadsheet,
				Position: model.Position{Source: "s.xlsx", Index: 7},
				Fields:   fields,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrMalformedRecord))
			var mre *common.MalformedRecordError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, tt.field, mre.Field)
			assert.Equal(t, "s.xlsx#7", mre.Position)
		})
	}
}

func TestNormalize_AllowNegative(t *testing.T) {
	company := testCompany()
	company.AllowNegative = true
	got, err := NewTabularNormalizer(company).Normalize(model.SourceRecord{
		Origin: model.OriginSpreadsheet,
		Fields: map[string]string{"Numero": "1", "Proveedor": "X", "Fecha Documento": "10-05-2024", "Monto": "-5"},
	})
	require.NoError(t, err)
	assert.True(t, got.Amount.IsNegative())
}

func TestStructuredNormalizer(t *testing.T) {
	n := NormalizerFor(model.OriginAuthoritative, testCompany())
	require.IsType(t, &StructuredNormalizer{}, n)

	got, err := n.Normalize(model.SourceRecord{
		Origin:   model.OriginAuthoritative,
		Company:  "ACME",
		Position: model.Position{Source: "/share/2024/05/acme/f.xml", Index: 1},
		Fields: map[string]string{
			FieldDocument:     "12345",
			FieldCounterparty: "CR-001",
			FieldDate:         "2024-05-31T23:59:00-06:00",
			FieldAmount:       "150.00000",
		},
		Details: []string{"line one"},
	})
	require.NoError(t, err)
	// The date is taken as written, not shifted to UTC.
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Equal(t, []string{"line one"}, got.Details)
	assert.Equal(t, model.OriginAuthoritative, got.Origin)
}

func TestStructuredNormalizer_Amounts(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    string
		wantErr bool
	}{
		{name: "five decimals", amount: "150.00000", want: "150"},
		{name: "three decimals stay decimals", amount: "1.234", want: "1.234"},
		{name: "grouped text rejected", amount: "1,234.00", wantErr: true},
		{name: "not numeric", amount: "n/a", wantErr: true},
	}

	n := NewStructuredNormalizer(testCompany())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(model.SourceRecord{
				Origin:   model.OriginAuthoritative,
				Position: model.Position{Source: "f.xml", Index: 1},
				Fields: map[string]string{
					FieldDocument:     "1",
					FieldCounterparty: "CR-001",
					FieldDate:         "2024-05-10",
					FieldAmount:       tt.amount,
				},
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrMalformedRecord)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(tt.want)), "got %s", got.Amount)
		})
	}
}

func TestNormalizeAll_ContinuesPastMalformed(t *testing.T) {
	records := []model.SourceRecord{
		{Origin: model.OriginSpreadsheet, Position: model.Position{Source: "s", Index: 2},
			Fields: map[string]string{"Numero": "1", "Proveedor": "A", "Fecha Documento": "01-05-2024", "Monto": "1"}},
		{Origin: model.OriginSpreadsheet, Position: model.Position{Source: "s", Index: 3},
			Fields: map[string]string{"Numero": "2", "Proveedor": "A", "Fecha Documento": "bogus", "Monto": "1"}},
		{Origin: model.OriginSpreadsheet, Position: model.Position{Source: "s", Index: 4},
			Fields: map[string]string{"Numero": "3", "Proveedor": "A", "Fecha Documento": "02-05-2024", "Monto": "1"}},
	}

	canonical, rejections := NormalizeAll(records, NewTabularNormalizer(testCompany()))
	require.Len(t, canonical, 2)
	assert.Equal(t, "1", canonical[0].Document)
	assert.Equal(t, "3", canonical[1].Document)
	require.Len(t, rejections, 1)
	assert.Equal(t, model.Position{Source: "s", Index: 3}, rejections[0].Position)
	assert.Contains(t, rejections[0].Detail, "unparseable date")
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, FoldKey("Número"), FoldKey("NUMERO"))
	assert.Equal(t, "fecha documento", FoldKey("  Fecha   Documento "))
}
