package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tcopeland/slackline/internal/config"
	"github.com/tcopeland/slackline/internal/launcher"
	"github.com/tcopeland/slackline/internal/logging"
	"github.com/tcopeland/slackline/internal/slackio"
	"github.com/tcopeland/slackline/internal/statedb"
	"github.com/tcopeland/slackline/internal/tmux"
)

var launchLog = logging.ForComponent(logging.CompLaunch)

// handleLauncher runs the Slack-command-to-tmux launcher daemon.
func handleLauncher(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("launcher", flag.ExitOnError)
	once := fs.Bool("once", false, "Run one poll-and-reap pass and exit")

	fs.Usage = func() {
		fmt.Println("Usage: slackline launcher [--once]")
		fmt.Println()
		fmt.Printf("Poll the Slack channel for '%s <task>' mentions and launch agent sessions.\n", cfg.Launcher.Trigger)
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	if err := cfg.ValidateSlack(); err != nil {
		fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		os.Exit(1)
	}
	if err := tmux.IsAvailable(); err != nil {
		fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		os.Exit(1)
	}

	db, err := statedb.Open(filepath.Join(config.StateDir(), "launcher.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chat := slackio.New(cfg.Slack)
	botUser, err := chat.AuthCheck(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		os.Exit(1)
	}
	chat.JoinChannel(ctx)

	launchLog.Info("launcher_started",
		slog.String("bot_user", botUser),
		slog.String("channel", cfg.Slack.ChannelID),
		slog.String("trigger", cfg.Launcher.Trigger),
		slog.Int("poll_secs", cfg.Launcher.PollSecs))
	fmt.Printf("Connected as %s, polling %s every %ds for '%s <task>'...\n",
		botUser, cfg.Slack.ChannelID, cfg.Launcher.PollSecs, cfg.Launcher.Trigger)

	dispatcher := launcher.NewDispatcher(chat, db, cfg.Launcher)
	if *once {
		if err := dispatcher.RunOnce(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := dispatcher.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		os.Exit(1)
	}
}
