package sheets

import (
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/report"
)

// Tab is one worksheet of the export: a header row followed by data rows.
type Tab struct {
	Title string
	Rows  [][]any
}

// TabData holds all tabs for one run export.
type TabData struct {
	Period model.Period
	RunID  string
	Tabs   []Tab
}

// BuildTabs lays out a run as one tab per reportable bucket. Every row is
// prefixed with the company ID; failed companies contribute no rows.
func BuildTabs(run *model.RunReport) TabData {
	header := make([]any, 0, len(model.RowHeader)+1)
	header = append(header, "Company")
	for _, h := range model.RowHeader {
		header = append(header, h)
	}

	data := TabData{Period: run.Summary.Period, RunID: run.Summary.RunID}
	for _, bucket := range model.Buckets {
		tab := Tab{Title: report.SheetFor(bucket), Rows: [][]any{header}}
		for _, c := range run.Companies {
			if c.Failure != nil {
				continue
			}
			for _, row := range c.Rows(bucket) {
				cells := row.Cells()
				values := make([]any, 0, len(cells)+1)
				values = append(values, row.Company)
				for _, cell := range cells {
					values = append(values, cell)
				}
				tab.Rows = append(tab.Rows, values)
			}
		}
		data.Tabs = append(data.Tabs, tab)
	}
	return data
}

// Titles returns the tab titles in order.
func (d TabData) Titles() []string {
	titles := make([]string, len(d.Tabs))
	for i, t := range d.Tabs {
		titles[i] = t.Title
	}
	return titles
}
