package themes

import (
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the visual style for the TUI.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Selected      lipgloss.Style
	Header        lipgloss.Style
	TabActive     lipgloss.Style
	TabInactive   lipgloss.Style
	StatusBar     lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	RoundedBox    lipgloss.Style
	Label         lipgloss.Style
	Primary       lipgloss.Color
	Muted         lipgloss.Color
	Border        lipgloss.Color
	Info          lipgloss.Color
	Error         lipgloss.Color
	Warning       lipgloss.Color
	Success       lipgloss.Color
}

func newTheme(primary, success, warning, errc, info, fg, border, muted string) Theme {
	return Theme{
		Primary: lipgloss.Color(primary),
		Success: lipgloss.Color(success),
		Warning: lipgloss.Color(warning),
		Error:   lipgloss.Color(errc),
		Info:    lipgloss.Color(info),
		Border:  lipgloss.Color(border),
		Muted:   lipgloss.Color(muted),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fg)),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)),
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(fg)),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fg)),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)).
			Width(16),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(primary)).
			Foreground(lipgloss.Color(fg)).
			Bold(true),
		Header: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color(border)),
		TabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fg)).
			Background(lipgloss.Color(primary)).
			Padding(0, 2),
		TabInactive: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)).
			Padding(0, 2),
		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)),
		RoundedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(border)).
			Padding(0, 1),

		StatusSuccess: lipgloss.NewStyle().
			Foreground(lipgloss.Color(success)).
			Bold(true),
		StatusWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(warning)).
			Bold(true),
		StatusError: lipgloss.NewStyle().
			Foreground(lipgloss.Color(errc)).
			Bold(true),
		StatusInfo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(info)).
			Bold(true),
	}
}

// Default is the default theme.
var Default = newTheme("#7c3aed", "#10b981", "#f59e0b", "#ef4444", "#3b82f6", "#fafafa", "#404040", "#737373")

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = newTheme("#cba6f7", "#a6e3a1", "#f9e2af", "#f38ba8", "#89dceb", "#cdd6f4", "#45475a", "#6c7086")

// GetTheme returns a theme by name, falling back to Default.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin", "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}

// BucketStyle returns the status style used for a bucket.
func (t Theme) BucketStyle(bucket model.Bucket) lipgloss.Style {
	switch bucket {
	case model.BucketMatched:
		return t.StatusSuccess
	case model.BucketManualReview:
		return t.StatusWarning
	case model.BucketUnmatched:
		return t.StatusError
	default:
		return t.StatusInfo
	}
}
