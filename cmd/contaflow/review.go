package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/tui"
	"github.com/Veraticus/contaflow/internal/tui/themes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review [run-id]",
		Short: "Browse a stored run's classifications",
		Long: `Open an interactive browser over the matched, unmatched and manual review
records of a stored run (default: the latest run).

Tab switches buckets, c cycles companies and Enter shows every field of
the highlighted record.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReview,
	}

	cmd.Flags().String("company", "", "only show this company")
	cmd.Flags().String("theme", "", "color theme (default, catppuccin)")
	_ = viper.BindPFlag("tui.theme", cmd.Flags().Lookup("theme"))

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
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
	company, _ := cmd.Flags().GetString("company")

	return tui.Run(ctx,
		tui.WithTheme(themes.GetTheme(viper.GetString("tui.theme"))),
		tui.WithTitle("Run "+id),
		tui.WithLoader(func(ctx context.Context) ([]model.Row, error) {
			return store.GetClassifications(ctx, id, company, "")
		}),
	)
}
