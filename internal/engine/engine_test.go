package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/contaflow/internal/loader"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/paths"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoice(doc, supplier, date, total string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<FacturaElectronica>
  <NumeroConsecutivo>%s</NumeroConsecutivo>
  <FechaEmision>%sT09:00:00-06:00</FechaEmision>
  <Emisor>
    <Nombre>Proveedor</Nombre>
    <Identificacion><Tipo>02</Tipo><Numero>%s</Numero></Identificacion>
  </Emisor>
  <ResumenFactura><TotalComprobante>%s</TotalComprobante></ResumenFactura>
</FacturaElectronica>`, doc, date, supplier, total)
}

func company(id string) model.CompanyProfile {
	return model.CompanyProfile{
		ID:               id,
		BasePathTemplate: "/share/{year}/{month}/" + id,
		SpreadsheetPaths: []string{"/in/" + id + "_{year}{month}.csv"},
		Columns:          model.DefaultColumns(),
	}
}

// seed writes one company's inputs: a spreadsheet with a match, a mismatch,
// a spreadsheet-only claim and an out-of-period row, plus invoices with one
// authoritative-only record and one unparseable file.
func seed(t *testing.T, fs afero.Fs, id string) {
	t.Helper()
	sheet := "Numero;Proveedor;Fecha Documento;Monto\n" +
		"A1;3101123456;10/05/2024;150,00\n" +
		"A2;3101123456;11/05/2024;200,00\n" +
		"A3;3101123456;12/05/2024;75,00\n" +
		"A9;3101123456;30/04/2024;10,00\n"
	require.NoError(t, afero.WriteFile(fs, "/in/"+id+"_202405.csv", []byte(sheet), 0o644))

	dir := "/share/2024/05/" + id
	files := map[string]string{
		"a1.xml":  invoice("A1", "3101123456", "2024-05-10", "150.00"),
		"a2.xml":  invoice("A2", "3101123456", "2024-05-11", "210.00"),
		"a4.xml":  invoice("A4", "3101123456", "2024-05-13", "99.00"),
		"bad.xml": "<FacturaElectronica><NumeroConsecutivo>",
	}
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, dir+"/"+name, []byte(body), 0o644))
	}
}

func newEngine(fs afero.Fs, opts Options) *Engine {
	return New(paths.NewResolver(fs), loader.NewFileProvider(fs), opts)
}

var may = model.Period{Year: 2024, Month: 5}

func TestEngine_Run(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "acme")

	report, err := newEngine(fs, Options{Workers: 2, NewRunID: func() string { return "run-1" }}).
		Run(context.Background(), []model.CompanyProfile{company("acme")}, may)
	require.NoError(t, err)
	require.Len(t, report.Companies, 1)

	res := report.Companies[0]
	require.Nil(t, res.Failure)
	assert.Equal(t, "/share/2024/05/acme", res.Dir)
	assert.Equal(t, model.StatusComplete, res.Summary.Status)

	counts := res.Summary.Counts
	assert.Equal(t, 2, counts.Matched)
	assert.Equal(t, 2, counts.Unmatched)
	assert.Equal(t, 2, counts.ManualReview)
	assert.Equal(t, 1, counts.Excluded)
	assert.Equal(t, 1, res.Summary.Rejected)
	assert.Equal(t, 1, res.Summary.MatchedPairs)
	assert.Equal(t, 8, res.Summary.Loaded)
	assert.Equal(t, res.Summary.Loaded, res.Summary.Accounted())

	require.Len(t, res.Rejections, 1)
	assert.Equal(t, model.OriginAuthoritative, res.Rejections[0].Origin)
	assert.Contains(t, res.Rejections[0].Position.Source, "bad.xml")

	reasons := map[string]model.Reason{}
	for _, r := range res.Results {
		reasons[string(r.Record.Origin)+":"+r.Record.Document] = r.Reason
	}
	assert.Equal(t, model.ReasonMatched, reasons["spreadsheet:A1"])
	assert.Equal(t, model.ReasonAmountMismatch, reasons["authoritative:A2"])
	assert.Equal(t, model.ReasonMissingInAuthoritative, reasons["spreadsheet:A3"])
	assert.Equal(t, model.ReasonMissingInSpreadsheet, reasons["authoritative:A4"])
	assert.Equal(t, model.ReasonOutOfPeriod, reasons["spreadsheet:A9"])

	assert.Equal(t, "run-1", report.Summary.RunID)
	assert.Equal(t, 1, report.Summary.Totals.Complete)
	assert.Empty(t, report.Summary.Failures)
}

func TestEngine_FailureIsolation(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "acme")
	seed(t, fs, "gamma")

	broken := company("beta")
	noColumns := company("delta")
	noColumns.Columns = model.ColumnMap{}

	companies := []model.CompanyProfile{company("acme"), broken, company("gamma"), noColumns}

	var mu sync.Mutex
	var done []string
	opts := Options{Workers: 3, OnCompanyDone: func(r model.CompanyResult) {
		mu.Lock()
		done = append(done, r.Company.ID)
		mu.Unlock()
	}}

	report, err := newEngine(fs, opts).Run(context.Background(), companies, may)
	require.NoError(t, err)
	require.Len(t, report.Companies, 4)
	assert.ElementsMatch(t, []string{"acme", "beta", "gamma", "delta"}, done)

	for i, id := range []string{"acme", "beta", "gamma", "delta"} {
		assert.Equal(t, id, report.Companies[i].Company.ID, "results keep configured order")
	}

	assert.Nil(t, report.Companies[0].Failure)
	assert.Nil(t, report.Companies[2].Failure)
	assert.Equal(t, report.Companies[0].Summary.Counts, report.Companies[2].Summary.Counts)

	beta := report.Companies[1]
	require.NotNil(t, beta.Failure)
	assert.Equal(t, model.FailurePathNotFound, beta.Failure.Kind)
	assert.Equal(t, model.StatusIncomplete, beta.Summary.Status)
	assert.Empty(t, beta.Results)

	delta := report.Companies[3]
	require.NotNil(t, delta.Failure)
	assert.Equal(t, model.FailureConfiguration, delta.Failure.Kind)

	assert.Equal(t, 2, report.Summary.Totals.Complete)
	assert.Equal(t, 2, report.Summary.Totals.Incomplete)
	require.Len(t, report.Summary.Failures, 2)
	assert.Equal(t, "beta", report.Summary.Failures[0].Company)
	assert.Equal(t, "delta", report.Summary.Failures[1].Company)
}

func TestEngine_Canceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "acme")
	seed(t, fs, "gamma")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newEngine(fs, Options{Workers: 1}).
		Run(ctx, []model.CompanyProfile{company("acme"), company("gamma")}, may)
	require.NoError(t, err)

	for _, c := range report.Companies {
		require.NotNil(t, c.Failure, c.Company.ID)
		assert.Equal(t, model.FailureCanceled, c.Failure.Kind)
		assert.Empty(t, c.Results)
	}
	assert.Equal(t, 2, report.Summary.Totals.Incomplete)
}

func TestEngine_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "acme")
	companies := []model.CompanyProfile{company("acme")}

	first, err := newEngine(fs, Options{Workers: 1}).Run(context.Background(), companies, may)
	require.NoError(t, err)
	second, err := newEngine(fs, Options{Workers: 4}).Run(context.Background(), companies, may)
	require.NoError(t, err)

	a, b := first.Companies[0].Results, second.Companies[0].Results
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Record.IdentityKey(), b[i].Record.IdentityKey())
		assert.Equal(t, a[i].Bucket, b[i].Bucket)
		assert.Equal(t, a[i].Reason, b[i].Reason)
	}
}

func TestEngine_ThresholdEscalates(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "acme")
	c := company("acme")
	c.ReviewThreshold = decimal.NewFromInt(100)

	report, err := newEngine(fs, Options{}).Run(context.Background(), []model.CompanyProfile{c}, may)
	require.NoError(t, err)

	for _, r := range report.Companies[0].Results {
		if r.Record.Document == "A1" {
			assert.Equal(t, model.BucketManualReview, r.Bucket)
			assert.Equal(t, model.ReasonAboveThreshold, r.Reason)
			assert.Equal(t, model.ReasonMatched, r.MatchReason)
		}
	}
	assert.Equal(t, 1, report.Companies[0].Summary.MatchedPairs)
}

func TestEngine_RunErrors(t *testing.T) {
	eng := newEngine(afero.NewMemMapFs(), Options{})
	ctx := context.Background()

	tests := []struct {
		name      string
		companies []model.CompanyProfile
		period    model.Period
	}{
		{name: "bad period", companies: []model.CompanyProfile{company("acme")}, period: model.Period{Year: 2024, Month: 13}},
		{name: "no companies", period: may},
		{name: "empty id", companies: []model.CompanyProfile{{}}, period: may},
		{name: "duplicate id", companies: []model.CompanyProfile{company("acme"), company("acme")}, period: may},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := eng.Run(ctx, tt.companies, tt.period)
			require.Error(t, err)
			assert.Nil(t, report)
		})
	}
}

func TestAccumulator(t *testing.T) {
	companies := []model.CompanyProfile{company("acme"), company("beta")}
	acc := NewAccumulator(companies)

	ok := acc.Merge(0, model.CompanyResult{
		Company: companies[0],
		Summary: model.CompanySummary{Company: "acme", Status: model.StatusComplete, Loaded: 3, Counts: model.Counts{Matched: 2, Unmatched: 1}},
	})
	assert.True(t, ok)
	assert.False(t, acc.Merge(0, model.CompanyResult{}), "second merge is ignored")
	assert.False(t, acc.Merge(7, model.CompanyResult{}))
	assert.Equal(t, 1, acc.Completed())

	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	report := acc.Report("r", may, start, time.Second)
	assert.Equal(t, 3, report.Summary.Totals.Loaded)
	assert.Equal(t, 1, report.Summary.Totals.Complete)
	assert.Equal(t, 1, report.Summary.Totals.Incomplete)
	require.Len(t, report.Summary.Failures, 1)
	assert.Equal(t, model.FailureCanceled, report.Summary.Failures[0].Kind)
	assert.Equal(t, start, report.Summary.StartedAt)
}
