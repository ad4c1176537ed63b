package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kethal/orderbot/internal/database"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent session history from the activity store",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "number of sessions to show")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	app, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(app.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open activity store: %w", err)
	}
	defer db.Close()

	stats, err := db.GetSessionStats()
	if err != nil {
		return err
	}

	fmt.Printf("sessions: %d  cycles completed: %d  cycles aborted: %d  disconnects: %d\n\n",
		stats["sessions"], stats["cycles_completed"], stats["cycles_aborted"], stats["disconnects"])

	sessions, err := db.GetRecentSessions(statsLimit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("no sessions recorded yet")
		return nil
	}

	for _, s := range sessions {
		end := "still open"
		if s.EndedAt != nil {
			end = s.EndedAt.Format("2006-01-02 15:04:05")
			if s.EndReason != nil && *s.EndReason != "" {
				end += " (" + *s.EndReason + ")"
			}
		}
		fmt.Printf("%s  %s@%s  %s -> %s\n",
			s.ID[:8], s.Username, s.Server,
			s.StartedAt.Format("2006-01-02 15:04:05"), end)
	}

	return nil
}
