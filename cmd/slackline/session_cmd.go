package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/tcopeland/slackline/internal/tmux"
)

// handleList prints live slackline tmux sessions.
func handleList() {
	names, err := tmux.ListSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("No slackline sessions running.")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

// handleAttach attaches the current terminal to a session. Accepts the full
// tmux name or the name without the slackline prefix.
func handleAttach(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: slackline attach <session-name>")
		os.Exit(1)
	}

	name := args[0]
	if !strings.HasPrefix(name, tmux.SessionPrefix) {
		name = tmux.SessionPrefix + name
	}

	sess := tmux.FromName(name)
	if !sess.Exists() {
		fmt.Fprintf(os.Stderr, "attach: no such session: %s\n", name)
		os.Exit(1)
	}
	if err := sess.Attach(); err != nil {
		fmt.Fprintf(os.Stderr, "attach: %v\n", err)
		os.Exit(1)
	}
}
