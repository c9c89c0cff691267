package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/config"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/service"
	"github.com/Veraticus/contaflow/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initStorage opens the run history database and applies migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// periodFlag reads --period, defaulting to the month before now.
func periodFlag(cmd *cobra.Command, now time.Time) (model.Period, error) {
	value, _ := cmd.Flags().GetString("period")
	if value == "" {
		return previousPeriod(now), nil
	}
	p, err := model.ParsePeriod(value)
	if err != nil {
		return model.Period{}, common.NewUserError("invalid --period", err)
	}
	return p, nil
}

// previousPeriod returns the period of the month before t.
func previousPeriod(t time.Time) model.Period {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return model.PeriodOf(first.AddDate(0, -1, 0))
}

// selectCompanies keeps the companies named in ids, in configured order.
// An empty ids keeps everything.
func selectCompanies(companies []model.CompanyProfile, ids []string) ([]model.CompanyProfile, error) {
	if len(ids) == 0 {
		return companies, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []model.CompanyProfile
	for _, c := range companies {
		if wanted[c.ID] {
			out = append(out, c)
			delete(wanted, c.ID)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return nil, common.NewUserError("companies not configured: "+strings.Join(missing, ", "), nil)
	}
	return out, nil
}

// saveConfig writes the current viper settings back to the config file.
func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = filepath.Join(config.DefaultConfigDir(), "config.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0o750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
