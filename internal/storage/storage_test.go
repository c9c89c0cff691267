package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func record(origin model.Origin, doc string, amount int64, day int) model.CanonicalRecord {
	return model.CanonicalRecord{
		Document:     doc,
		Counterparty: "3101123456",
		Date:         time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.NewFromInt(amount),
		Origin:       origin,
		Company:      "acme",
		Source:       &model.SourceRecord{Position: model.Position{Source: "cargador.csv", Index: day}},
	}
}

func sampleReport(id string, started time.Time) *model.RunReport {
	sheet := record(model.OriginSpreadsheet, "A1", 150, 10)
	auth := record(model.OriginAuthoritative, "A1", 152, 10)
	auth.Plate = "M914559"
	auth.Details = []string{"Diesel", "Lavado"}
	delta := auth.Amount.Sub(sheet.Amount)

	acme := model.CompanyResult{
		Company: model.CompanyProfile{ID: "acme", ActivityCode: "721001"},
		Dir:     "/share/2024/05/acme",
		Results: []model.ClassificationResult{
			{Record: sheet, Paired: &auth, Delta: &delta, Bucket: model.BucketManualReview, Reason: model.ReasonAmountMismatch, MatchReason: model.ReasonAmountMismatch},
			{Record: record(model.OriginSpreadsheet, "A3", 75, 12), Bucket: model.BucketUnmatched, Reason: model.ReasonMissingInAuthoritative, MatchReason: model.ReasonMissingInAuthoritative},
			{Record: auth, Paired: &sheet, Delta: &delta, Bucket: model.BucketManualReview, Reason: model.ReasonAmountMismatch, MatchReason: model.ReasonAmountMismatch},
		},
		Summary: model.CompanySummary{
			Company: "acme",
			Status:  model.StatusComplete,
			Counts:  model.Counts{Unmatched: 1, ManualReview: 2},
			Loaded:  3,
			Elapsed: 1500 * time.Millisecond,
		},
	}
	failure := model.Failure{Company: "beta", Kind: model.FailurePathNotFound, Detail: "missing"}
	beta := model.CompanyResult{
		Company: model.CompanyProfile{ID: "beta"},
		Failure: &failure,
		Summary: model.CompanySummary{Company: "beta", Status: model.StatusIncomplete},
	}

	report := &model.RunReport{
		Companies: []model.CompanyResult{acme, beta},
		Summary: model.RunSummary{
			RunID:     id,
			Period:    model.Period{Year: 2024, Month: 5},
			StartedAt: started,
			Elapsed:   2 * time.Second,
			Companies: []model.CompanySummary{acme.Summary, beta.Summary},
			Failures:  []model.Failure{failure},
		},
	}
	for _, s := range report.Summary.Companies {
		report.Summary.Totals.Add(s)
	}
	return report
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	require.NoError(t, store.Migrate(ctx), "migrating twice is a no-op")
}

func TestSQLiteStorage_SaveAndGetRun(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleReport("run-1", started)))

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, model.Period{Year: 2024, Month: 5}, run.Period)
	assert.Equal(t, 2*time.Second, run.Elapsed)
	assert.Equal(t, 1, run.Totals.Complete)
	assert.Equal(t, 1, run.Totals.Incomplete)
	assert.Equal(t, 2, run.Totals.Counts.ManualReview)

	require.Len(t, run.Companies, 2)
	assert.Equal(t, "acme", run.Companies[0].Summary.Company)
	assert.Equal(t, "/share/2024/05/acme", run.Companies[0].Dir)
	assert.Equal(t, 1500*time.Millisecond, run.Companies[0].Summary.Elapsed)
	assert.Equal(t, model.StatusIncomplete, run.Companies[1].Summary.Status)

	require.Len(t, run.Failures, 1)
	assert.Equal(t, model.FailurePathNotFound, run.Failures[0].Kind)
}

func TestSQLiteStorage_GetClassifications(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, sampleReport("run-1", time.Now())))

	tests := []struct {
		name    string
		company string
		bucket  model.Bucket
		want    []string
	}{
		{name: "all", want: []string{"A1", "A3", "A1"}},
		{name: "manual review", company: "acme", bucket: model.BucketManualReview, want: []string{"A1", "A1"}},
		{name: "unmatched", bucket: model.BucketUnmatched, want: []string{"A3"}},
		{name: "other company", company: "beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.GetClassifications(ctx, "run-1", tt.company, tt.bucket)
			require.NoError(t, err)
			var docs []string
			for _, r := range rows {
				docs = append(docs, r.Document)
			}
			assert.Equal(t, tt.want, docs)
		})
	}

	rows, err := store.GetClassifications(ctx, "run-1", "acme", model.BucketManualReview)
	require.NoError(t, err)
	first := rows[0]
	assert.Equal(t, model.OriginSpreadsheet, first.Origin)
	assert.Equal(t, "cargador.csv", first.Source)
	assert.Equal(t, 10, first.Index)
	assert.Equal(t, "150", first.Amount.String())
	require.True(t, first.PairedAmount.Valid)
	assert.Equal(t, "152", first.PairedAmount.Decimal.String())
	require.True(t, first.Delta.Valid)
	assert.Equal(t, "2", first.Delta.Decimal.String())
	assert.Equal(t, "A1", first.PairedDocument)
	assert.False(t, first.PairedDate.IsZero())
	assert.Equal(t, "721001", first.ActivityCode)
	assert.Equal(t, "M914559", first.Plate)
	assert.Equal(t, "Diesel | Lavado", first.Details)

	unmatched, err := store.GetClassifications(ctx, "run-1", "acme", model.BucketUnmatched)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.False(t, unmatched[0].PairedAmount.Valid)
	assert.False(t, unmatched[0].Delta.Valid)
	assert.True(t, unmatched[0].PairedDate.IsZero())
	assert.Empty(t, unmatched[0].Details)

	_, err = store.GetClassifications(ctx, "run-1", "", model.Bucket("nope"))
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func TestSQLiteStorage_ListRuns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.SaveRun(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[2].ID)

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
}

func TestSQLiteStorage_Errors(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = store.LatestRun(ctx)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	assert.ErrorIs(t, store.DeleteRun(ctx, "missing"), common.ErrNotFound)

	tests := []struct {
		name   string
		report *model.RunReport
	}{
		{name: "nil", report: nil},
		{name: "no id", report: sampleReport("", time.Now())},
		{name: "no start", report: sampleReport("r", time.Time{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.SaveRun(ctx, tt.report))
		})
	}

	require.NoError(t, store.SaveRun(ctx, sampleReport("dup", time.Now())))
	assert.Error(t, store.SaveRun(ctx, sampleReport("dup", time.Now())), "run IDs are unique")
}

func TestSQLiteStorage_DeleteRun(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, sampleReport("run-1", time.Now())))

	require.NoError(t, store.DeleteRun(ctx, "run-1"))

	rows, err := store.GetClassifications(ctx, "run-1", "", "")
	require.NoError(t, err)
	assert.Empty(t, rows, "classifications cascade with the run")

	_, err = store.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
