package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpender/revisit/internal/resurface"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show resurfacing queue and nudge engagement stats",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	stats, err := resurface.NewQueue(db).Stats(time.Now())
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}

	fmt.Println("## Resurfacing Queue")
	fmt.Printf("  in queue: %d\n", stats.TotalInQueue)
	fmt.Printf("  overdue:  %d\n", stats.Overdue)
	fmt.Printf("  upcoming: %d\n", stats.Upcoming)
	fmt.Printf("  paused:   %d\n", stats.Paused)

	counters, err := db.ListCounters()
	if err != nil {
		return fmt.Errorf("list counters: %w", err)
	}
	if len(counters) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("## Nudge Engagement")
	for _, c := range counters {
		fmt.Printf("  %-20s acted on %d, dismissed %d\n", c.Type, c.ActedOn, c.Dismissed)
	}
	return nil
}
