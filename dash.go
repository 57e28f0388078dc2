package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/stride/internal/api"
	"github.com/sadopc/stride/internal/tui"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open the terminal dashboard",
	Long: `Opens the dashboard: today's count and goal, the last seven days, history
charts and settings. Start and stop are sent to the daemon on the control
address; everything else reads the shared store directly.`,
	Args: cobra.NoArgs,
	RunE: runDash,
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	app := tui.NewApp(s, api.NewClient(cfg.ControlAddress))
	_, err = tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}
