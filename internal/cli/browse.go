package cli

import (
	"github.com/biliview/biliview/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse search history in the terminal",
		Run:   runBrowse,
	}
	RootCmd.AddCommand(cmd)
}

func runBrowse(cmd *cobra.Command, args []string) {
	a := openHistory()
	defer a.Close()

	p := tea.NewProgram(tui.New(a.history, a.cache), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		exitErr("browse", err)
	}
}
