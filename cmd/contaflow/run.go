package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/contaflow/internal/cli"
	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/config"
	"github.com/Veraticus/contaflow/internal/engine"
	"github.com/Veraticus/contaflow/internal/loader"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/paths"
	"github.com/Veraticus/contaflow/internal/reconcile"
	"github.com/Veraticus/contaflow/internal/report"
	"github.com/Veraticus/contaflow/internal/service"
	"github.com/Veraticus/contaflow/internal/sheets"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile every configured company for one period",
		Long: `Reconcile each configured company's purchase spreadsheet against the
electronic invoices stored in its period directory.

One workbook is written per complete company, and failures.json lists every
company that could not be reconciled. A company that fails never stops the
others.`,
		RunE: runReconcile,
	}

	cmd.Flags().StringP("period", "p", "", "period to reconcile as YYYY-MM (default: previous month)")
	cmd.Flags().StringSlice("input", nil, "spreadsheet files or globs for companies without their own")
	cmd.Flags().StringSlice("company", nil, "only reconcile these company IDs")
	cmd.Flags().StringP("output", "o", "", "directory for workbooks and failures.json")
	cmd.Flags().Int("workers", 0, "companies reconciled in parallel")
	cmd.Flags().String("policy", "", "duplicate policy (earliest_date_then_position, earliest_position)")
	cmd.Flags().Bool("store", false, "save the run to the history database")
	cmd.Flags().Bool("sheets", false, "export the buckets to Google Sheets")

	_ = viper.BindPFlag("run.output_dir", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("run.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("run.duplicate_policy", cmd.Flags().Lookup("policy"))
	_ = viper.BindPFlag("run.store", cmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("run.sheets", cmd.Flags().Lookup("sheets"))

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	period, err := periodFlag(cmd, time.Now())
	if err != nil {
		return err
	}

	companies, err := config.LoadCompanies()
	if err != nil {
		return common.NewUserError("invalid company configuration", err)
	}
	ids, _ := cmd.Flags().GetStringSlice("company")
	if companies, err = selectCompanies(companies, ids); err != nil {
		return err
	}

	policy, err := reconcile.ParseDuplicatePolicy(viper.GetString("run.duplicate_policy"))
	if err != nil {
		return common.NewUserError("invalid --policy", err)
	}

	inputs, _ := cmd.Flags().GetStringSlice("input")
	for i, in := range inputs {
		inputs[i] = config.ExpandPath(in)
	}

	runCfg := config.LoadRunConfig()
	r := &runner{
		fs:        afero.NewOsFs(),
		out:       cmd.OutOrStdout(),
		inputs:    inputs,
		outputDir: runCfg.OutputDir,
		workers:   runCfg.Workers,
		policy:    policy,
	}

	if runCfg.Store {
		store, err := initStorage(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer closeStorage(store)
		r.store = store
	}

	if runCfg.Sheets {
		sheetsCfg, err := config.LoadSheetsConfig()
		if err != nil {
			return common.NewUserError("Google Sheets is not configured", err)
		}
		writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create sheets writer: %w", err)
		}
		r.exporter = writer
	}

	_, err = r.run(ctx, companies, period)
	return err
}

// runner reconciles one period and writes every configured output.
type runner struct {
	fs        afero.Fs
	out       io.Writer
	store     service.Storage
	exporter  sheets.ReportWriter
	outputDir string
	inputs    []string
	workers   int
	policy    reconcile.DuplicatePolicy
}

func (r *runner) run(ctx context.Context, companies []model.CompanyProfile, period model.Period) (*model.RunReport, error) {
	progress := cli.NewRunProgress(r.out, len(companies))

	eng := engine.New(
		paths.NewResolver(r.fs),
		loader.NewFileProvider(r.fs, r.inputs...),
		engine.Options{
			Workers:       r.workers,
			Policy:        r.policy,
			OnCompanyDone: progress.Done,
		},
	)

	run, err := eng.Run(ctx, companies, period)
	if err != nil {
		return nil, common.NewUserError("reconciliation could not start", err)
	}

	written, writeFailures := report.NewWorkbookWriter(r.fs, r.outputDir).WriteAll(run)
	run.Summary.Failures = append(run.Summary.Failures, writeFailures...)
	failuresPath, err := report.WriteFailuresFile(r.fs, r.outputDir, run.Summary.Failures)
	if err != nil {
		return run, fmt.Errorf("failed to write failures: %w", err)
	}

	// History and Sheets are best effort once the workbooks exist.
	// An interrupted run still persists what finished.
	persistCtx := context.WithoutCancel(ctx)
	if r.store != nil {
		if err := r.store.SaveRun(persistCtx, run); err != nil {
			slog.Error("Failed to save run history", "run_id", run.Summary.RunID, "error", err)
		} else {
			slog.Info("Saved run history", "run_id", run.Summary.RunID)
		}
	}
	if r.exporter != nil && ctx.Err() == nil {
		if err := r.exporter.Write(ctx, run); err != nil {
			slog.Error("Failed to export to Google Sheets", "error", err)
		}
	}

	if _, err := fmt.Fprintln(r.out, cli.RenderRunSummary(run.Summary)); err != nil {
		return run, fmt.Errorf("failed to write summary: %w", err)
	}
	for _, path := range written {
		if _, err := fmt.Fprintln(r.out, cli.FormatSuccess("Wrote "+path)); err != nil {
			return run, fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if _, err := fmt.Fprintln(r.out, cli.FormatInfo("Failures listed in "+failuresPath)); err != nil {
		return run, fmt.Errorf("failed to write summary: %w", err)
	}

	return run, nil
}
