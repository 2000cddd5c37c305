package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcopeland/slackline/internal/config"
	"github.com/tcopeland/slackline/internal/escalation"
	"github.com/tcopeland/slackline/internal/slackio"
)

// handleWatch runs the background reply watcher for one question until a
// Slack reply is recorded, the race is resolved elsewhere, or the configured
// timeout elapses.
func handleWatch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	questionID := fs.String("question-id", "", "Question ID (the agent session ID)")

	fs.Usage = func() {
		fmt.Println("Usage: slackline watch --question-id ID")
		fmt.Println()
		fmt.Println("Poll the question's Slack thread until a reply arrives or the timeout elapses.")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}
	if *questionID == "" {
		fs.Usage()
		os.Exit(1)
	}

	if err := cfg.ValidateSlack(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}

	store, err := escalation.NewStore(config.QuestionsDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watcher := escalation.NewWatcher(
		store,
		slackio.New(cfg.Slack),
		time.Duration(cfg.Watch.IntervalSecs)*time.Second,
		time.Duration(cfg.Watch.TimeoutSecs)*time.Second,
	)

	// Timeout and cancellation are normal outcomes for a watcher; the wait
	// command is what reports NO_ANSWER to the agent.
	if _, err := watcher.Run(ctx, escalation.SanitizeQuestionID(*questionID)); err != nil &&
		!errors.Is(err, escalation.ErrNoAnswer) && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
}

// handleCheck performs a one-shot reply check and prints the answer if one is
// (or becomes) available.
func handleCheck(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	questionID := fs.String("question-id", "", "Question ID (the agent session ID)")

	fs.Usage = func() {
		fmt.Println("Usage: slackline check --question-id ID")
		fmt.Println()
		fmt.Println("One-shot check for a Slack reply. Prints SLACK_ANSWER: <text> when found.")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}
	if *questionID == "" {
		fs.Usage()
		os.Exit(1)
	}

	id := escalation.SanitizeQuestionID(*questionID)
	store, err := escalation.NewStore(config.QuestionsDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		os.Exit(1)
	}

	if answer, ok := store.ReadAnswer(id); ok {
		fmt.Printf("SLACK_ANSWER: %s\n", answer)
		return
	}

	if err := cfg.ValidateSlack(); err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	watcher := escalation.NewWatcher(
		store,
		slackio.New(cfg.Slack),
		time.Duration(cfg.Watch.IntervalSecs)*time.Second,
		time.Duration(cfg.Watch.TimeoutSecs)*time.Second,
	)
	answer, err := watcher.CheckOnce(ctx, id)
	if err != nil && !errors.Is(err, escalation.ErrAlreadyAnswered) {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		return
	}
	if answer != "" {
		fmt.Printf("SLACK_ANSWER: %s\n", answer)
	}
}
