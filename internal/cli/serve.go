package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/engine"
	"github.com/jpender/revisit/internal/llm"
	"github.com/jpender/revisit/internal/logging"
	"github.com/jpender/revisit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and nudge scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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
		fmt.Fprintf(os.Stderr, "  llm: %s\n", cfg.LLM.Provider)
	}
	// The check-in evaluator degrades to its heuristic triggers without a
	// client, so it is always wired.
	eng.SetCheckIn(engine.NewCheckInService(db, llmClient, logging.Component(log, "check_in")))

	// Settings are re-read from disk before every tick so edits to the
	// config file take effect without a restart.
	settings := func() config.Nudges {
		fresh, err := loadConfig()
		if err != nil {
			log.Warn().Err(err).Msg("config reload failed, keeping last good settings")
			return cfg.Nudges
		}
		return fresh.Nudges
	}

	eng.StartScheduler(settings)
	defer eng.Stop()

	srv := server.New(db, eng, settings, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "revisit serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
