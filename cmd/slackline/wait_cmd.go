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
)

// handleWait blocks until a Slack answer is recorded for the question or the
// timeout elapses. The agent runs this as a background task and races it
// against terminal input, so both outcomes exit 0:
//
//	SLACK_ANSWER: <text>   an answer arrived
//	NO_ANSWER              timeout; the terminal side should be used
func handleWait(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wait", flag.ExitOnError)
	questionID := fs.String("question-id", "", "Question ID (the agent session ID)")
	timeoutSecs := fs.Int("timeout", cfg.Watch.WaitTimeoutSecs, "Maximum seconds to wait")

	fs.Usage = func() {
		fmt.Println("Usage: slackline wait --question-id ID [--timeout SECS]")
		fmt.Println()
		fmt.Println("Block until a Slack answer arrives or the timeout elapses.")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}
	if *questionID == "" {
		fs.Usage()
		os.Exit(1)
	}

	store, err := escalation.NewStore(config.QuestionsDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "wait: %v\n", err)
		fmt.Println("NO_ANSWER")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	waiter := escalation.NewWaiter(store)
	answer, err := waiter.Wait(ctx, escalation.SanitizeQuestionID(*questionID), time.Duration(*timeoutSecs)*time.Second)
	if err != nil {
		if !errors.Is(err, escalation.ErrNoAnswer) && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "wait: %v\n", err)
		}
		fmt.Println("NO_ANSWER")
		return
	}
	fmt.Printf("SLACK_ANSWER: %s\n", answer)
}
