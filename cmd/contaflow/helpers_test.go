package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/paths"
	"github.com/Veraticus/contaflow/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousPeriod(t *testing.T) {
	tests := []struct {
		now  time.Time
		want model.Period
		name string
	}{
		{name: "mid year", now: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), want: model.Period{Year: 2024, Month: 5}},
		{name: "january wraps", now: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), want: model.Period{Year: 2023, Month: 12}},
		{name: "end of march", now: time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC), want: model.Period{Year: 2024, Month: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, previousPeriod(tt.now))
		})
	}
}

func TestPeriodFlag(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	cmd := runCmd()
	p, err := periodFlag(cmd, now)
	require.NoError(t, err)
	assert.Equal(t, model.Period{Year: 2024, Month: 5}, p)

	require.NoError(t, cmd.Flags().Set("period", "2023-11"))
	p, err = periodFlag(cmd, now)
	require.NoError(t, err)
	assert.Equal(t, model.Period{Year: 2023, Month: 11}, p)

	require.NoError(t, cmd.Flags().Set("period", "11/2023"))
	_, err = periodFlag(cmd, now)
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestSelectCompanies(t *testing.T) {
	all := []model.CompanyProfile{testCompany("acme"), testCompany("beta"), testCompany("gamma")}

	tests := []struct {
		name    string
		ids     []string
		want    []string
		wantErr string
	}{
		{name: "all when empty", ids: nil, want: []string{"acme", "beta", "gamma"}},
		{name: "keeps configured order", ids: []string{"gamma", "acme"}, want: []string{"acme", "gamma"}},
		{name: "unknown company", ids: []string{"acme", "zeta", "omega"}, wantErr: "omega, zeta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectCompanies(all, tt.ids)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestShowPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/share/2024/05/acme", 0o755))

	bad := testCompany("bad")
	bad.DetailLimit = -1

	var out bytes.Buffer
	err := showPaths(&out, paths.NewResolver(fs), []model.CompanyProfile{testCompany("acme"), testCompany("ghost"), bad}, may)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Paths for 2024-05")
	assert.Contains(t, text, "/share/2024/05/acme")
	assert.Contains(t, text, "/in/acme_202405.csv")
	assert.Contains(t, text, "✓ found")
	assert.Contains(t, text, "/share/2024/05/ghost")
	assert.Contains(t, text, "invalid configuration for company bad: detail_limit")
	assert.NotContains(t, text, "/share/2024/05/bad")
}

func TestHistoryPrinting(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	seedCompany(t, fs, "acme")
	store := testutil.SetupTestDB(t).Storage

	var out bytes.Buffer
	require.NoError(t, printRuns(&out, nil))
	assert.Contains(t, out.String(), "No runs stored yet")

	r := &runner{fs: fs, out: &bytes.Buffer{}, store: store, outputDir: "/out"}
	run, err := r.run(ctx, []model.CompanyProfile{testCompany("acme"), testCompany("ghost")}, may)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, printRuns(&out, runs))
	assert.Contains(t, out.String(), run.Summary.RunID)
	assert.Contains(t, out.String(), "2024-05")

	detail, err := store.GetRun(ctx, run.Summary.RunID)
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, printRunDetail(&out, detail))
	text := out.String()
	assert.Contains(t, text, "acme")
	assert.Contains(t, text, "ghost: "+string(model.FailurePathNotFound))
	assert.Contains(t, text, string(model.StatusComplete))
}
