package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/contaflow/internal/cli"
	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/config"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/paths"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func pathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Show where each company's records are read from",
		Long: `Resolve every company's invoice directory and spreadsheet templates for a
period without reconciling anything. Missing directories are reported the
same way a run would report them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFlag(cmd, time.Now())
			if err != nil {
				return err
			}
			companies, err := config.LoadCompanies()
			if err != nil {
				return common.NewUserError("invalid company configuration", err)
			}
			return showPaths(cmd.OutOrStdout(), paths.NewResolver(afero.NewOsFs()), companies, period)
		},
	}

	cmd.Flags().StringP("period", "p", "", "period to resolve as YYYY-MM (default: previous month)")

	return cmd
}

func showPaths(w io.Writer, resolver *paths.Resolver, companies []model.CompanyProfile, period model.Period) error {
	header := []string{"Company", "Directory", "Spreadsheets", "Status"}
	rows := make([][]string, 0, len(companies))
	for _, c := range companies {
		sheetsCol := make([]string, 0, len(c.SpreadsheetPaths))
		for _, t := range c.SpreadsheetPaths {
			sheetsCol = append(sheetsCol, paths.Expand(t, period))
		}

		if err := c.Validate(); err != nil {
			rows = append(rows, []string{c.ID, "", strings.Join(sheetsCol, ", "), cli.ErrorStyle.Render(cli.ErrorIcon + " " + err.Error())})
			continue
		}

		dir, err := resolver.Resolve(c, period)
		status := cli.SuccessStyle.Render(cli.SuccessIcon + " found")
		if err != nil {
			status = cli.ErrorStyle.Render(cli.ErrorIcon + " " + err.Error())
			if built, buildErr := paths.Build(c.BasePathTemplate, period); buildErr == nil {
				dir = built
			}
		}
		rows = append(rows, []string{c.ID, dir, strings.Join(sheetsCol, ", "), status})
	}

	_, err := fmt.Fprintln(w, cli.RenderBox(cli.FolderIcon+" Paths for "+period.String(), cli.RenderTable(header, rows)))
	return err
}
