// Package cli implements the searchctl command tree on top of the
// searchclient package.
package cli

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchai/api/internal/logger"
	"github.com/searchai/api/pkg/searchclient"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type app struct {
	v            *viper.Viper
	pollInterval time.Duration
}

func (a *app) client() *searchclient.Client {
	return searchclient.New(a.v.GetString("url"), searchclient.WithToken(a.v.GetString("token")))
}

func newApp() *app {
	a := &app{v: viper.New(), pollInterval: time.Second}
	a.v.SetEnvPrefix("SEARCHAI")
	a.v.AutomaticEnv()
	a.v.SetDefault("url", "http://localhost:8000")
	return a
}

// NewRootCmd builds the command tree. Flags fall back to SEARCHAI_URL and
// SEARCHAI_TOKEN.
func NewRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Run and manage AI web searches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			slog.SetDefault(logger.NewWithWriter(cmd.ErrOrStderr(), logger.FromConfig(level, "text")))
		},
	}
	root.PersistentFlags().String("server", "", "API base URL (default $SEARCHAI_URL or http://localhost:8000)")
	root.PersistentFlags().String("token", "", "bearer token (default $SEARCHAI_TOKEN)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log polling and request details")
	_ = a.v.BindPFlag("url", root.PersistentFlags().Lookup("server"))
	_ = a.v.BindPFlag("token", root.PersistentFlags().Lookup("token"))

	root.AddCommand(
		a.searchCmd(),
		a.statusCmd(),
		a.watchCmd(),
		a.cancelCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.sourceCmd(),
		a.askCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
