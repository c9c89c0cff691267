package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/sheets"
	"github.com/Veraticus/contaflow/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var may = model.Period{Year: 2024, Month: 5}

func invoiceXML(doc, date, total string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<FacturaElectronica>
  <NumeroConsecutivo>%s</NumeroConsecutivo>
  <FechaEmision>%sT09:00:00-06:00</FechaEmision>
  <Emisor>
    <Nombre>Proveedor</Nombre>
    <Identificacion><Tipo>02</Tipo><Numero>3101123456</Numero></Identificacion>
  </Emisor>
  <ResumenFactura><TotalComprobante>%s</TotalComprobante></ResumenFactura>
</FacturaElectronica>`, doc, date, total)
}

func testCompany(id string) model.CompanyProfile {
	return model.CompanyProfile{
		ID:               id,
		BasePathTemplate: "/share/{year}/{month}/" + id,
		SpreadsheetPaths: []string{"/in/" + id + "_{year}{month}.csv"},
		Columns:          model.DefaultColumns(),
	}
}

func seedCompany(t *testing.T, fs afero.Fs, id string) {
	t.Helper()
	sheet := "Numero;Proveedor;Fecha Documento;Monto\n" +
		"A1;3101123456;10/05/2024;150,00\n" +
		"A3;3101123456;12/05/2024;75,00\n"
	require.NoError(t, afero.WriteFile(fs, "/in/"+id+"_202405.csv", []byte(sheet), 0o644))

	dir := "/share/2024/05/" + id
	require.NoError(t, afero.WriteFile(fs, dir+"/a1.xml", []byte(invoiceXML("A1", "2024-05-10", "150.00")), 0o644))
	require.NoError(t, afero.WriteFile(fs, dir+"/a4.xml", []byte(invoiceXML("A4", "2024-05-13", "99.00")), 0o644))
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	seedCompany(t, fs, "acme")

	store := testutil.SetupTestDB(t).Storage
	exporter := sheets.NewMockWriter()
	var out bytes.Buffer

	r := &runner{fs: fs, out: &out, store: store, exporter: exporter, outputDir: "/out", workers: 2}
	run, err := r.run(ctx, []model.CompanyProfile{testCompany("acme"), testCompany("ghost")}, may)
	require.NoError(t, err)
	require.Len(t, run.Companies, 2)

	ok, err := afero.Exists(fs, "/out/acme_2024-05.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = afero.Exists(fs, "/out/ghost_2024-05.xlsx")
	require.NoError(t, err)
	assert.False(t, ok, "failed companies get no workbook")

	failures, err := afero.ReadFile(fs, "/out/failures.json")
	require.NoError(t, err)
	assert.Contains(t, string(failures), `"ghost"`)
	assert.Contains(t, string(failures), string(model.FailurePathNotFound))

	detail, err := store.GetRun(ctx, run.Summary.RunID)
	require.NoError(t, err)
	assert.Len(t, detail.Companies, 2)
	assert.Len(t, detail.Failures, 1)

	matched, err := store.GetClassifications(ctx, run.Summary.RunID, "acme", model.BucketMatched)
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	exporter.AssertWriteCalled(t, 1)
	assert.Same(t, run, exporter.LastReport)

	assert.Contains(t, out.String(), "Reconciliation Complete")
	assert.Contains(t, out.String(), "acme_2024-05.xlsx")
}

func TestRunner_ExportFailureIsNotFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCompany(t, fs, "acme")

	exporter := sheets.NewMockWriter()
	exporter.SetWriteError(errors.New("quota exceeded"))

	r := &runner{fs: fs, out: &bytes.Buffer{}, exporter: exporter, outputDir: "/out"}
	_, err := r.run(context.Background(), []model.CompanyProfile{testCompany("acme")}, may)
	require.NoError(t, err)
	exporter.AssertWriteCalled(t, 1)
}

func TestRunner_Canceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCompany(t, fs, "acme")
	store := testutil.SetupTestDB(t).Storage
	exporter := sheets.NewMockWriter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &runner{fs: fs, out: &bytes.Buffer{}, store: store, exporter: exporter, outputDir: "/out"}
	run, err := r.run(ctx, []model.CompanyProfile{testCompany("acme")}, may)
	require.NoError(t, err)
	require.Len(t, run.Summary.Failures, 1)
	assert.Equal(t, model.FailureCanceled, run.Summary.Failures[0].Kind)

	failures, err := afero.ReadFile(fs, "/out/failures.json")
	require.NoError(t, err)
	assert.Contains(t, string(failures), string(model.FailureCanceled))

	_, err = store.GetRun(context.Background(), run.Summary.RunID)
	require.NoError(t, err, "interrupted runs are still stored")
	exporter.AssertWriteCalled(t, 0)
}

func TestRunner_InvalidCompanyFailsAlone(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCompany(t, fs, "good")
	seedCompany(t, fs, "bad")

	bad := testCompany("bad")
	bad.ReviewThreshold = decimal.NewFromInt(-5)

	r := &runner{fs: fs, out: &bytes.Buffer{}, outputDir: "/out"}
	run, err := r.run(context.Background(), []model.CompanyProfile{testCompany("good"), bad}, may)
	require.NoError(t, err)
	require.Len(t, run.Companies, 2)

	assert.Equal(t, model.StatusComplete, run.Companies[0].Summary.Status)
	assert.Equal(t, 2, run.Companies[0].Summary.Counts.Matched)
	ok, err := afero.Exists(fs, "/out/good_2024-05.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, run.Summary.Failures, 1)
	assert.Equal(t, "bad", run.Summary.Failures[0].Company)
	assert.Equal(t, model.FailureConfiguration, run.Summary.Failures[0].Kind)

	failures, err := afero.ReadFile(fs, "/out/failures.json")
	require.NoError(t, err)
	assert.Contains(t, string(failures), `"bad"`)
	assert.Contains(t, string(failures), string(model.FailureConfiguration))
}

// createFailFs refuses to create one file name.
type createFailFs struct {
	afero.Fs
	name string
}

func (f createFailFs) Create(name string) (afero.File, error) {
	if filepath.Base(name) == f.name {
		return nil, errors.New("disk full")
	}
	return f.Fs.Create(name)
}

func TestRunner_WorkbookErrorStillWritesFailures(t *testing.T) {
	fs := createFailFs{Fs: afero.NewMemMapFs(), name: "acme_2024-05.xlsx"}
	seedCompany(t, fs, "acme")
	seedCompany(t, fs, "beta")
	store := testutil.SetupTestDB(t).Storage

	r := &runner{fs: fs, out: &bytes.Buffer{}, store: store, outputDir: "/out"}
	run, err := r.run(context.Background(), []model.CompanyProfile{testCompany("acme"), testCompany("beta")}, may)
	require.NoError(t, err)

	ok, err := afero.Exists(fs, "/out/beta_2024-05.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)

	failures, err := afero.ReadFile(fs, "/out/failures.json")
	require.NoError(t, err)
	assert.Contains(t, string(failures), `"acme"`)
	assert.Contains(t, string(failures), string(model.FailureOutput))

	detail, err := store.GetRun(context.Background(), run.Summary.RunID)
	require.NoError(t, err)
	require.Len(t, detail.Failures, 1)
	assert.Equal(t, model.FailureOutput, detail.Failures[0].Kind)
}

func TestRunner_InvalidCompanyList(t *testing.T) {
	r := &runner{fs: afero.NewMemMapFs(), out: &bytes.Buffer{}, outputDir: "/out"}
	_, err := r.run(context.Background(), nil, may)
	require.Error(t, err)

	ok, _ := afero.Exists(r.fs, "/out/failures.json")
	assert.False(t, ok)
}
