package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"qahub/internal/tui"
)

var tuiDocs []string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal UI.

Controls:
  Enter   - Ask
  ↑/↓     - Cycle sources
  Ctrl+X  - Clear documents and history
  Ctrl+C  - Quit`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringSliceVar(&tuiDocs, "docs", nil, "files, directories or storage URLs to index")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// log lines would tear the alternate screen
	var logOut io.Writer = io.Discard
	if verbose {
		logOut = cmd.ErrOrStderr()
	}
	a, err := buildApp(cmd.Context(), logOut, tuiDocs)
	if err != nil {
		return err
	}
	defer a.Session.Close()

	summary := fmt.Sprintf("%d documents loaded.", len(a.Session.Documents()))
	p := tea.NewProgram(tui.New(a.Session, summary), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
