package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kethal/orderbot/internal/database"
	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect and run the order automation headlessly",
	Long: `Connect to the configured server, start the order automation and
keep the session alive until interrupted. SIGINT/SIGTERM perform the
same idempotent teardown as a manual disconnect.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	app, err := loadConfig()
	if err != nil {
		return err
	}
	if err := app.Session.Validate(); err != nil {
		return err
	}
	if err := app.Session.ValidateOrders(); err != nil {
		return err
	}

	logger := newRootLogger(app)

	bus := events.NewEventBus(64)
	defer bus.Stop()

	db, err := database.Open(app.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open activity store: %w", err)
	}
	defer db.Close()

	recorder := database.NewRecorder(db, app.Session.Username, logger.Sub("recorder"))
	recorder.Attach(bus)
	defer recorder.Detach()

	orch := session.NewOrchestrator(&app.Session, session.DefaultDial(logger), logger.Sub("session"), bus)

	// Start the automation once the session reaches Ready; every
	// reconnect generation re-arms it the same way.
	bus.Subscribe(events.EventTypeSessionReady, func(events.Event) {
		if err := orch.StartOrders(); err != nil {
			logger.Error("failed to start order automation", err)
		}
	})

	if err := orch.Connect(); err != nil {
		// The supervisor may still be retrying in the background;
		// only bail out if reconnection is off.
		if !app.Session.AutoReconnect {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	bus.Subscribe(events.EventTypeReconnectExhausted, func(events.Event) {
		close(done)
	})

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
		orch.Shutdown()
	case <-done:
		logger.Warn("reconnect attempts exhausted, exiting")
	}

	return nil
}
