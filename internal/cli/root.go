package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kethal/orderbot/internal/config"
	"github.com/kethal/orderbot/internal/logging"
)

var (
	configPath  string
	profilePath string
	serverFlag  string
	userFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "orderbot",
	Short: "Persistent game-server session automation",
	Long: `orderbot keeps a game-server session alive and runs a repeating
order-drop routine on it: it sends the order command, takes the
item from the server GUI, and drops the configured hotbar slots.

Silent disconnects are detected with a heartbeat probe and the
session reconnects automatically with bounded backoff.

Run 'orderbot run' for headless automation or 'orderbot shell' for
an interactive session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "Settings.ini", "path to Settings.ini")
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "path to an order profile YAML")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "server address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "username", "", "username (overrides config)")
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads Settings.ini, applies the order profile and any
// command-line overrides
func loadConfig() (*config.AppConfig, error) {
	var app *config.AppConfig
	if _, err := os.Stat(configPath); err == nil {
		app, err = config.LoadFromINI(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		app = config.NewDefaultConfig()
	}

	if profilePath != "" {
		profile, err := config.LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		profile.Apply(&app.Session)
	}

	if serverFlag != "" {
		app.Session.Server = serverFlag
	}
	if userFlag != "" {
		app.Session.Username = userFlag
	}

	return app, nil
}

func newRootLogger(app *config.AppConfig) *logging.Logger {
	return logging.NewLogger("orderbot").SetMinLevel(logging.ParseLevel(app.LogLevel))
}
