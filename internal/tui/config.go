package tui

import (
	"context"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/tui/themes"
)

// RowLoader fetches the rows to browse.
type RowLoader func(ctx context.Context) ([]model.Row, error)

// Config holds TUI configuration.
type Config struct {
	Theme    themes.Theme
	Loader   RowLoader
	Title    string
	Rows     []model.Row
	Width    int
	Height   int
	ShowHelp bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:    themes.Default,
		Title:    "Reconciliation Review",
		Width:    120,
		Height:   30,
		ShowHelp: false,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithRows browses rows that are already in memory.
func WithRows(rows []model.Row) Option {
	return func(c *Config) {
		c.Rows = rows
	}
}

// WithLoader loads rows asynchronously once the program starts.
func WithLoader(loader RowLoader) Option {
	return func(c *Config) {
		c.Loader = loader
	}
}

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(c *Config) {
		c.Title = title
	}
}
