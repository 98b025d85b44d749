package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var nudgesStatus string

var nudgesCmd = &cobra.Command{
	Use:   "nudges",
	Short: "List nudges",
	RunE:  runNudges,
}

func init() {
	nudgesCmd.Flags().StringVarP(&nudgesStatus, "status", "s", "", "Filter by status (pending, shown, dismissed, acted_on)")
}

func runNudges(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	nudges, err := db.ListNudges(nudgesStatus)
	if err != nil {
		return fmt.Errorf("list nudges: %w", err)
	}

	if len(nudges) == 0 {
		fmt.Println("No nudges.")
		return nil
	}

	for _, n := range nudges {
		created := time.UnixMilli(n.CreatedAt).Format("2006-01-02 15:04")
		fmt.Printf("%4d  %-20s %-10s %s\n", n.ID, n.Type, n.Status, created)
		fmt.Printf("      %s\n", n.Message)
		if n.OpeningPrompt != "" {
			fmt.Printf("      > %s\n", n.OpeningPrompt)
		}
	}
	return nil
}
