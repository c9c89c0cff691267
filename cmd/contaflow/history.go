package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Veraticus/contaflow/internal/cli"
	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/service"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored reconciliation runs",
		Long:  `List, inspect and delete runs saved with 'contaflow run --store'.`,
	}

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyDeleteCmd())

	return cmd
}

func historyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "maximum number of runs to show")

	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run's company summaries (default: latest run)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			id, err := runIDArg(cmd, store, args)
			if err != nil {
				return err
			}
			detail, err := store.GetRun(ctx, id)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("run %s not found", id), nil)
				}
				return fmt.Errorf("failed to load run: %w", err)
			}
			return printRunDetail(cmd.OutOrStdout(), detail)
		},
	}
}

func historyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			yes, _ := cmd.Flags().GetBool("yes")

			if !yes {
				prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				ok, err := prompter.Confirm(ctx, fmt.Sprintf("Delete run %s and all its classifications?", args[0]), false)
				if err != nil {
					return err
				}
				if !ok {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted"))
					return err
				}
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.DeleteRun(ctx, args[0]); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("run %s not found", args[0]), nil)
				}
				return fmt.Errorf("failed to delete run: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted run "+args[0]))
			return err
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// runIDArg returns the run named in args, or the latest stored run.
func runIDArg(cmd *cobra.Command, store service.Storage, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	latest, err := store.LatestRun(cmd.Context())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.NewUserError("no runs stored yet; use 'contaflow run --store'", nil)
		}
		return "", fmt.Errorf("failed to find latest run: %w", err)
	}
	return latest.ID, nil
}

func printRuns(w io.Writer, runs []service.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatInfo("No runs stored yet"))
		return err
	}

	header := []string{"Run", "Period", "Started", "Complete", "Incomplete", "Matched", "Unmatched", "Review"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Period.String(),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(r.Totals.Complete),
			strconv.Itoa(r.Totals.Incomplete),
			strconv.Itoa(r.Totals.Counts.Matched),
			strconv.Itoa(r.Totals.Counts.Unmatched),
			strconv.Itoa(r.Totals.Counts.ManualReview),
		})
	}
	_, err := fmt.Fprintln(w, cli.RenderTable(header, rows))
	return err
}

func printRunDetail(w io.Writer, detail *service.RunDetail) error {
	header := []string{"Company", "Status", "Directory", "Loaded", "Matched", "Unmatched", "Review", "Excluded", "Rejected"}
	rows := make([][]string, 0, len(detail.Companies))
	for _, c := range detail.Companies {
		s := c.Summary
		rows = append(rows, []string{
			s.Company,
			cli.FormatStatus(s.Status),
			c.Dir,
			strconv.Itoa(s.Loaded),
			strconv.Itoa(s.Counts.Matched),
			strconv.Itoa(s.Counts.Unmatched),
			strconv.Itoa(s.Counts.ManualReview),
			strconv.Itoa(s.Counts.Excluded),
			strconv.Itoa(s.Rejected),
		})
	}

	content := cli.RenderTable(header, rows) + "\n\n" +
		fmt.Sprintf("Started %s, took %s", detail.StartedAt.Local().Format("2006-01-02 15:04:05"), detail.Elapsed.Round(time.Millisecond))
	for _, f := range detail.Failures {
		content += "\n" + cli.FormatError(fmt.Sprintf("%s: %s (%s)", f.Company, f.Kind, f.Detail))
	}

	_, err := fmt.Fprintln(w, cli.RenderBox(fmt.Sprintf("%s Run %s for %s", cli.ChartIcon, detail.ID, detail.Period), content))
	return err
}

func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close storage", "error", err)
	}
}
