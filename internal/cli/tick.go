package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpender/revisit/internal/engine"
	"github.com/jpender/revisit/internal/llm"
	"github.com/jpender/revisit/internal/logging"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one nudge generation pass and print the result",
	RunE:  runTick,
}

func runTick(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Stderr(cfg.Log.Level)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, logging.Component(log, "engine"))
	eng.SetDigest(&engine.WeeklyDigest{DB: db})

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), smart nudges disabled\n", err)
	}
	if llmClient != nil {
		eng.SetSmart(engine.NewLLMSmartNudger(db, llmClient, logging.Component(log, "smart")))
	}
	eng.SetCheckIn(engine.NewCheckInService(db, llmClient, logging.Component(log, "check_in")))

	rep := eng.Tick(context.Background(), time.Now(), cfg.Nudges)
	// Let the async smart producer finish before reporting.
	eng.Wait()

	fmt.Printf("tick at %s\n", rep.At.Format("2006-01-02 15:04:05"))
	if rep.IntervalsReset > 0 {
		fmt.Printf("  reset %d stale resurfacing intervals\n", rep.IntervalsReset)
	}
	for _, res := range rep.Results {
		line := fmt.Sprintf("  %-18s %s", res.Producer, res.Outcome)
		if res.Reason != "" {
			line += " (" + res.Reason + ")"
		}
		if res.NudgeID != 0 {
			line += fmt.Sprintf(" nudge=%d", res.NudgeID)
		}
		fmt.Println(line)
	}
	fmt.Printf("created %d nudges\n", rep.Created)
	return nil
}
