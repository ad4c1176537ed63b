package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kethal/orderbot/internal/database"
	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/session"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session shell",
	Long: `Drive the session interactively. Available commands:

  connect        connect to the configured server
  disconnect     disconnect and suppress auto-reconnect
  start          start the order automation
  stop           stop the order automation
  status         show session and cycle state
  say <text>     send chat or a /command
  quit           disconnect and exit`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	app, err := loadConfig()
	if err != nil {
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

	// Echo chat to the shell
	bus.Subscribe(events.EventTypeChatReceived, func(ev events.Event) {
		if msg, ok := ev.Data["message"].(string); ok {
			fmt.Printf("[chat] %s\n", msg)
		}
	})

	orch := session.NewOrchestrator(&app.Session, session.DefaultDial(logger), logger.Sub("session"), bus)
	defer orch.Shutdown()

	fmt.Println("orderbot shell - type 'help' for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		verb, rest := line, ""
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			verb, rest = line[:idx], strings.TrimSpace(line[idx+1:])
		}

		switch verb {
		case "help":
			fmt.Println(cmd.Long)

		case "connect":
			if err := orch.Connect(); err != nil {
				fmt.Println("connect failed:", err)
			}

		case "disconnect":
			orch.Disconnect()

		case "start":
			if err := orch.StartOrders(); err != nil {
				fmt.Println("start failed:", err)
			}

		case "stop":
			orch.StopOrders()
			fmt.Println("order automation stopped")

		case "status":
			printStatus(orch.Status())

		case "say":
			if rest == "" {
				fmt.Println("usage: say <text>")
				continue
			}
			if err := orch.Say(rest); err != nil {
				fmt.Println("say failed:", err)
			}

		case "quit", "exit":
			orch.Disconnect()
			return nil

		default:
			fmt.Printf("unknown command %q, type 'help'\n", verb)
		}
	}

	return scanner.Err()
}

func printStatus(snap session.Snapshot) {
	fmt.Printf("state:    %s\n", snap.State)
	if snap.SessionID != "" {
		fmt.Printf("session:  %s\n", snap.SessionID)
	}
	if snap.CycleRunning {
		fmt.Printf("cycle:    %s (%d completed)\n", snap.CyclePhase, snap.CyclesCompleted)
	} else {
		fmt.Printf("cycle:    not running\n")
	}
	if snap.ReconnectAttempts > 0 {
		fmt.Printf("retries:  %d\n", snap.ReconnectAttempts)
	}
	if !snap.LastActivity.IsZero() {
		fmt.Printf("activity: %s\n", snap.LastActivity.Format("15:04:05"))
	}
}
