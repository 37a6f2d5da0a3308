package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ent0n29/screener/internal/app"
	"github.com/ent0n29/screener/internal/config"
	"github.com/ent0n29/screener/internal/launch"
	"github.com/ent0n29/screener/internal/observability"
	"github.com/ent0n29/screener/internal/voice"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	flag.StringVar(&cfg.InterviewFile, "interview", cfg.InterviewFile, "interview script (yaml)")
	flag.StringVar(&cfg.FAQFile, "faq", cfg.FAQFile, "FAQ document answered during the question round")
	flag.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "directory for the summary and structured record")
	flag.Parse()

	logger := observability.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	built, err := app.Build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return 1
	}
	defer built.Cleanup()

	console := voice.NewConsole(os.Stdin, os.Stdout, cfg.ListenTimeout)
	go func() {
		select {
		case <-console.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Println("Type your answers and press Enter. Ctrl+C or Ctrl+D ends the interview.")
	res, err := built.Launcher.Run(ctx, "console", console, launch.Hooks{})
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview failed: %v\n", err)
		return 1
	}
	if res.Cancelled {
		fmt.Println("Interview ended early.")
	}
	fmt.Printf("Summary:\n%s\n", res.Summary)
	if out, err := json.MarshalIndent(res.Export, "", "    "); err == nil {
		fmt.Printf("Candidate record:\n%s\n", out)
	}
	return 0
}
