package main

import (
	"fmt"
	"os"

	"github.com/tcopeland/slackline/internal/config"
	"github.com/tcopeland/slackline/internal/logging"
)

const Version = "0.3.1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "slackline: %v\n", err)
		os.Exit(1)
	}

	// All subcommands log to the state dir; stdout stays reserved for hook
	// decisions and wait results.
	logging.Init(logging.Config{
		LogDir:    config.StateDir(),
		Level:     cfg.Logs.Level,
		Format:    cfg.Logs.Format,
		MaxSizeMB: cfg.Logs.MaxSizeMB,
		Compress:  true,
	})
	defer logging.Shutdown()

	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("slackline v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "hook":
		handleHook(cfg, args[1:])
	case "check":
		handleCheck(cfg, args[1:])
	case "watch":
		handleWatch(cfg, args[1:])
	case "wait":
		handleWait(cfg, args[1:])
	case "launcher":
		handleLauncher(cfg, args[1:])
	case "list", "ls":
		handleList()
	case "attach":
		handleAttach(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`slackline - bridge agent questions and launches to Slack

Usage: slackline <command> [options]

Hook commands (wired into the agent's settings):
  hook pre                  PreToolUse handler: posts the question to Slack,
                            denies the native prompt with fallback instructions
  hook post                 PostToolUse handler: stops the watcher, cleans up

Reply race commands:
  check --question-id ID    One-shot check for a Slack reply
  watch --question-id ID    Background watcher: poll Slack until answered
  wait  --question-id ID [--timeout SECS]
                            Block until a Slack answer arrives or timeout;
                            prints "SLACK_ANSWER: <text>" or "NO_ANSWER"

Launcher:
  launcher [--once]         Poll Slack for command mentions and start agent
                            sessions in tmux

Sessions:
  list                      List live slackline tmux sessions
  attach <name>             Attach to a session

Other:
  version                   Print version
  help                      Show this help`)
}
