// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the keyboard piano
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the TUI and blocks until the user quits
func Run(ctrl Controller, opts Options) error {
	p := tea.NewProgram(NewModel(ctrl, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}
