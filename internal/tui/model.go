package tui

import (
	"context"
	"sort"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// Model holds the review browser state.
type Model struct {
	ctx        context.Context
	lastError  error
	theme      themes.Theme
	byBucket   map[model.Bucket][]model.Row
	config     Config
	keymap     KeyMap
	help       help.Model
	companies  []string
	table      table.Model
	width      int
	height     int
	tab        int
	company    int
	showDetail bool
	quitting   bool
	ready      bool
}

var tableColumns = []table.Column{
	{Title: "Company", Width: 12},
	{Title: "Document", Width: 14},
	{Title: "Counterparty", Width: 14},
	{Title: "Date", Width: 10},
	{Title: "Amount", Width: 12},
	{Title: "Origin", Width: 13},
	{Title: "Reason", Width: 24},
}

// newModel creates a new model with the given configuration.
func newModel(ctx context.Context, cfg Config) Model {
	km := DefaultKeyMap()
	m := Model{
		ctx:    ctx,
		config: cfg,
		keymap: km,
		theme:  cfg.Theme,
		help:   help.New(),
		width:  cfg.Width,
		height: cfg.Height,
		table: table.New(
			table.WithColumns(tableColumns),
			table.WithFocused(true),
			table.WithKeyMap(table.KeyMap{
				LineUp:       km.Up,
				LineDown:     km.Down,
				PageUp:       km.PageUp,
				PageDown:     km.PageDown,
				HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
				HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
				GotoTop:      km.Home,
				GotoBottom:   km.End,
			}),
		),
	}
	m.help.ShowAll = cfg.ShowHelp

	styles := table.DefaultStyles()
	styles.Header = m.theme.Header
	styles.Selected = m.theme.Selected
	m.table.SetStyles(styles)

	if cfg.Loader == nil {
		m.setRows(cfg.Rows)
	}
	m.resize()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	if m.config.Loader == nil {
		return nil
	}
	return m.loadRows()
}

func (m Model) loadRows() tea.Cmd {
	loader, ctx := m.config.Loader, m.ctx
	return func() tea.Msg {
		rows, err := loader(ctx)
		return rowsLoadedMsg{rows: rows, err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.handleKeys(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case rowsLoadedMsg:
		if msg.err != nil {
			m.lastError = msg.err
			m.ready = true
			return m, nil
		}
		m.setRows(msg.rows)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// handleKeys handles browser-level keys. Anything else goes to the table.
func (m *Model) handleKeys(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return true, tea.Quit
	case !m.ready:
		return true, nil
	case key.Matches(msg, m.keymap.NextTab):
		m.tab = (m.tab + 1) % len(model.Buckets)
		m.refresh()
	case key.Matches(msg, m.keymap.PrevTab):
		m.tab = (m.tab + len(model.Buckets) - 1) % len(model.Buckets)
		m.refresh()
	case key.Matches(msg, m.keymap.NextCompany):
		m.company = (m.company + 1) % len(m.companies)
		m.refresh()
	case key.Matches(msg, m.keymap.PrevCompany):
		m.company = (m.company + len(m.companies) - 1) % len(m.companies)
		m.refresh()
	case key.Matches(msg, m.keymap.ToggleDetail):
		m.showDetail = !m.showDetail
		m.resize()
	case key.Matches(msg, m.keymap.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	default:
		return false, nil
	}
	return true, nil
}

// setRows groups rows by bucket and builds the company filter list. The
// first entry of the list is the empty "all companies" filter.
func (m *Model) setRows(rows []model.Row) {
	m.byBucket = make(map[model.Bucket][]model.Row, len(model.Buckets))
	seen := make(map[string]bool)
	var companies []string
	for _, r := range rows {
		m.byBucket[r.Bucket] = append(m.byBucket[r.Bucket], r)
		if !seen[r.Company] {
			seen[r.Company] = true
			companies = append(companies, r.Company)
		}
	}
	sort.Strings(companies)
	m.companies = append([]string{""}, companies...)
	m.tab, m.company = 0, 0
	m.ready = true
	m.refresh()
}

// refresh reloads the table for the current bucket and company.
func (m *Model) refresh() {
	visible := m.visible()
	rows := make([]table.Row, 0, len(visible))
	for _, r := range visible {
		cells := r.Cells()
		rows = append(rows, table.Row{
			r.Company,
			r.Document,
			r.Counterparty,
			cells[5],
			cells[6],
			string(r.Origin),
			string(r.Reason),
		})
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

// visible returns the rows of the current bucket after the company filter.
func (m Model) visible() []model.Row {
	rows := m.byBucket[m.Bucket()]
	filter := m.Company()
	if filter == "" {
		return rows
	}
	out := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		if r.Company == filter {
			out = append(out, r)
		}
	}
	return out
}

// Bucket returns the bucket being browsed.
func (m Model) Bucket() model.Bucket {
	return model.Buckets[m.tab]
}

// Company returns the company filter, empty for all companies.
func (m Model) Company() string {
	if m.company >= len(m.companies) {
		return ""
	}
	return m.companies[m.company]
}

// Selected returns the highlighted row.
func (m Model) Selected() (model.Row, bool) {
	visible := m.visible()
	i := m.table.Cursor()
	if i < 0 || i >= len(visible) {
		return model.Row{}, false
	}
	return visible[i], true
}

// resize fits the table between the tab bar, detail pane and status line.
func (m *Model) resize() {
	height := m.height - 6
	if m.help.ShowAll {
		height -= 5
	}
	if m.showDetail {
		height -= len(model.RowHeader) + 4
	}
	if height < 3 {
		height = 3
	}
	m.table.SetHeight(height)
	m.table.SetWidth(m.width)
	m.help.Width = m.width
}
