package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/report"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.renderLoading()
	}
	if m.lastError != nil {
		return m.theme.StatusError.Render("Failed to load classifications: "+m.lastError.Error()) + "\n"
	}

	sections := []string{
		m.renderHeader(),
		m.renderTabs(),
		m.table.View(),
	}
	if m.showDetail {
		sections = append(sections, m.renderDetail())
	}
	sections = append(sections, m.renderStatusBar(), m.help.View(m.keymap))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderLoading renders the loading screen.
func (m Model) renderLoading() string {
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		m.theme.Title.Render("Loading classifications..."),
		"",
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(m.config.Title),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHeader() string {
	filter := "all companies"
	if c := m.Company(); c != "" {
		filter = c
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.Title.Render(m.config.Title),
		m.theme.Subtitle.Render("  "+filter),
	)
}

// renderTabs renders one tab per bucket with its row count.
func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(model.Buckets))
	for i, b := range model.Buckets {
		label := fmt.Sprintf("%s (%d)", report.SheetFor(b), m.count(b))
		if i == m.tab {
			tabs = append(tabs, m.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.theme.TabInactive.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// count returns how many rows of bucket pass the company filter.
func (m Model) count(bucket model.Bucket) int {
	filter := m.Company()
	n := 0
	for _, r := range m.byBucket[bucket] {
		if filter == "" || r.Company == filter {
			n++
		}
	}
	return n
}

// renderDetail lists every column of the selected row.
func (m Model) renderDetail() string {
	row, ok := m.Selected()
	if !ok {
		return m.theme.RoundedBox.Render(m.theme.Subtitle.Render("No row selected"))
	}

	lines := []string{
		m.theme.Label.Render("Company") + row.Company,
		m.theme.Label.Render("Bucket") + m.theme.BucketStyle(row.Bucket).Render(string(row.Bucket)),
	}
	if row.MatchReason != "" && row.MatchReason != row.Reason {
		lines = append(lines, m.theme.Label.Render("Match")+string(row.MatchReason))
	}
	for i, cell := range row.Cells() {
		if cell == "" {
			continue
		}
		lines = append(lines, m.theme.Label.Render(model.RowHeader[i])+cell)
	}
	return m.theme.RoundedBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	n := len(m.visible())
	pos := 0
	if n > 0 {
		pos = m.table.Cursor() + 1
	}
	return m.theme.StatusBar.Render(fmt.Sprintf("%d/%d  %s", pos, n, m.theme.BucketStyle(m.Bucket()).Render(string(m.Bucket()))))
}
