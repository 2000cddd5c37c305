// Package launcher maps Slack command mentions to running agent sessions in
// tmux, acknowledges each launch in its thread, and posts a completion
// summary when a session ends.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tcopeland/slackline/internal/config"
	"github.com/tcopeland/slackline/internal/logging"
	"github.com/tcopeland/slackline/internal/slackio"
	"github.com/tcopeland/slackline/internal/statedb"
	"github.com/tcopeland/slackline/internal/tmux"
)

var log = logging.ForComponent(logging.CompLaunch)

const (
	// historyLimit bounds each channel poll. Commands arrive at human speed;
	// ten messages per poll is plenty.
	historyLimit = 10

	// processedKeep bounds the processed-timestamp table.
	processedKeep = 100

	// summaryTailBytes bounds the completion summary posted to Slack.
	summaryTailBytes = 500
)

// Chat is the slice of the Slack client the launcher needs.
type Chat interface {
	BotUserID() string
	PostThreaded(ctx context.Context, threadTS, text string) error
	History(ctx context.Context, limit int) ([]slackio.Message, error)
}

// Dispatcher polls the channel for command mentions and turns each one into
// exactly one tmux session.
type Dispatcher struct {
	chat Chat
	db   *statedb.DB
	cfg  config.LauncherConfig

	// launch and sessionAlive are seams for tests; defaults shell out to tmux.
	launch       func(task string) (*statedb.Launch, error)
	sessionAlive func(name string) bool
}

// NewDispatcher builds a dispatcher over the given chat client and state db.
func NewDispatcher(chat Chat, db *statedb.DB, cfg config.LauncherConfig) *Dispatcher {
	d := &Dispatcher{chat: chat, db: db, cfg: cfg}
	d.launch = d.launchSession
	d.sessionAlive = func(name string) bool { return tmux.FromName(name).Exists() }
	return d
}

// Run polls for commands and reaps finished sessions until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := time.Duration(d.cfg.PollSecs) * time.Second

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := d.PollOnce(ctx); err != nil {
				log.Warn("poll_failed", slog.String("error", err.Error()))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		// Sessions run for minutes; reap at a gentler pace than the command poll.
		ticker := time.NewTicker(2 * interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				d.ReapOnce(ctx)
			}
		}
	})

	return g.Wait()
}

// RunOnce performs a single poll-and-reap pass.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	err := d.PollOnce(ctx)
	d.ReapOnce(ctx)
	return err
}

// PollOnce fetches recent channel history and handles any new command
// mentions, oldest first.
func (d *Dispatcher) PollOnce(ctx context.Context) error {
	messages, err := d.chat.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	lastChecked, err := d.db.LastChecked()
	if err != nil {
		return err
	}
	if lastChecked == 0 {
		// Fresh start: checkpoint at the newest message so old channel
		// backlog is never replayed as commands.
		if err := d.db.SetLastChecked(messages[0].TS); err != nil {
			return err
		}
		return nil
	}

	// History arrives newest first; handle oldest first.
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.TS <= lastChecked || m.FromBot {
			continue
		}
		if done, err := d.db.IsProcessed(m.RawTS); err != nil || done {
			continue
		}
		if !HasMention(m.Text, d.chat.BotUserID()) {
			continue
		}

		task, ok := ParseCommand(m.Text, d.cfg.Trigger)
		if !ok {
			// Mention without a command; likely a thread reply. Don't ack,
			// but don't look at it again either.
			_ = d.db.MarkProcessed(m.RawTS)
			continue
		}

		d.handleCommand(ctx, m, task)
		_ = d.db.MarkProcessed(m.RawTS)
	}

	if err := d.db.SetLastChecked(messages[0].TS); err != nil {
		return err
	}
	return d.db.TrimProcessed(processedKeep)
}

// handleCommand launches a session for one command message and acknowledges
// (or reports failure) in the message's thread.
func (d *Dispatcher) handleCommand(ctx context.Context, m slackio.Message, task string) {
	log.Info("new_task", slog.String("task", truncate(task, 80)))

	l, err := d.launch(task)
	if err != nil {
		log.Error("launch_failed", slog.String("error", err.Error()))
		_ = d.chat.PostThreaded(ctx, m.RawTS, ":x: Failed to launch session: "+err.Error())
		return
	}

	l.ThreadTS = m.RawTS
	if err := d.db.SaveLaunch(l); err != nil {
		log.Error("save_launch_failed", slog.String("session", l.Session), slog.String("error", err.Error()))
	}

	ack := fmt.Sprintf(
		":rocket: *Launching agent session*\n*Task:* %s\n*Session:* `%s`\n*Terminal:* `tmux attach -t %s`\n*Log:* `%s`",
		task, l.Session, l.Session, l.LogFile,
	)
	if err := d.chat.PostThreaded(ctx, m.RawTS, ack); err != nil {
		log.Warn("ack_failed", slog.String("session", l.Session), slog.String("error", err.Error()))
	}
}

// ReapOnce posts completion summaries for recorded sessions whose tmux
// session has ended, then drops them from the state db.
func (d *Dispatcher) ReapOnce(ctx context.Context) {
	launches, err := d.db.LoadLaunches()
	if err != nil {
		log.Warn("load_launches_failed", slog.String("error", err.Error()))
		return
	}

	for _, l := range launches {
		if d.sessionAlive(l.Session) {
			continue
		}
		log.Info("session_ended", slog.String("session", l.Session))

		summary := completionSummary(l)
		if err := d.chat.PostThreaded(ctx, l.ThreadTS, summary); err != nil {
			log.Warn("summary_post_failed", slog.String("session", l.Session), slog.String("error", err.Error()))
		}
		if err := d.db.DeleteLaunch(l.ThreadTS); err != nil {
			log.Warn("delete_launch_failed", slog.String("session", l.Session), slog.String("error", err.Error()))
		}
	}
}

// completionSummary builds the thread message for a finished session: the tail
// of its log, bounded to summaryTailBytes.
func completionSummary(l *statedb.Launch) string {
	data, err := os.ReadFile(l.LogFile)
	if err != nil || len(data) == 0 {
		return fmt.Sprintf(":white_check_mark: *Session `%s` completed* (no log output found)", l.Session)
	}

	output := string(data)
	if len(output) > summaryTailBytes {
		output = "..." + output[len(output)-summaryTailBytes:]
	}
	return fmt.Sprintf(":white_check_mark: *Session `%s` completed*\n\n```\n%s\n```", l.Session, output)
}

// launchSession is the production launch path: write a wrapper script and
// start a detached tmux session running it.
func (d *Dispatcher) launchSession(task string) (*statedb.Launch, error) {
	if err := os.MkdirAll(d.cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("launcher: create log dir: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	sess := tmux.NewSession(SessionSlug(task), home)
	logFile := filepath.Join(d.cfg.LogDir, sess.Name+".log")

	script, err := d.writeWrapper(sess.Name, task, logFile)
	if err != nil {
		return nil, err
	}

	if err := sess.Start(script); err != nil {
		return nil, err
	}

	return &statedb.Launch{
		Session: sess.Name,
		LogFile: logFile,
		Task:    task,
		Started: time.Now(),
	}, nil
}

// writeWrapper writes the per-session launch script and returns its path.
// The script runs the agent in print mode, tees output to the log file, and
// keeps the pane open briefly so an attached operator can read the tail.
func (d *Dispatcher) writeWrapper(sessionName, task, logFile string) (string, error) {
	runDir := filepath.Join(config.StateDir(), "run")
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("launcher: create run dir: %w", err)
	}

	script := fmt.Sprintf(`#!/bin/bash
# slackline session: %s
export PATH="$HOME/.local/bin:$PATH"

%s %s 2>&1 | tee %q

echo ""
echo "========================================"
echo "Agent session complete: %s"
echo "Log: %s"
echo "========================================"
sleep 30
`, sessionName, d.cfg.AgentCommand, shellQuote(task), logFile, sessionName, logFile)

	path := filepath.Join(runDir, sessionName+".sh")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("launcher: write wrapper: %w", err)
	}
	return path, nil
}

// shellQuote single-quotes a string for safe interpolation into a bash script.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
