package tui

import "github.com/Veraticus/contaflow/internal/model"

// Data loading messages.
type rowsLoadedMsg struct {
	err  error
	rows []model.Row
}
