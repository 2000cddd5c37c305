// Package tmux provides a wrapper for the tmux session operations slackline
// delegates to the external tmux CLI: create a named detached session running
// a command, check liveness, list, attach, kill.
package tmux

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/tcopeland/slackline/internal/logging"
)

var log = logging.ForComponent(logging.CompTmux)

// SessionPrefix namespaces slackline sessions in the tmux session table.
const SessionPrefix = "slackline_"

// IsAvailable checks if tmux is installed and accessible.
func IsAvailable() error {
	cmd := exec.Command("tmux", "-V")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux not found or not working: %w (output: %s)", err, string(output))
	}
	return nil
}

// Session represents one tmux session running an agent task.
type Session struct {
	Name        string
	DisplayName string
	WorkDir     string
	Command     string
	Created     time.Time
}

// NewSession creates a Session with a unique tmux name derived from the
// display name. Identical display names still get distinct session names.
func NewSession(name, workDir string) *Session {
	return &Session{
		Name:        SessionPrefix + sanitizeName(name) + "_" + generateShortID(),
		DisplayName: name,
		WorkDir:     workDir,
		Created:     time.Now(),
	}
}

// FromName wraps an existing tmux session name.
func FromName(name string) *Session {
	return &Session{Name: name, DisplayName: strings.TrimPrefix(name, SessionPrefix)}
}

// sanitizeName converts a display name to a valid tmux session name.
func sanitizeName(name string) string {
	re := regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	s := re.ReplaceAllString(name, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "task"
	}
	return s
}

// generateShortID generates a short random ID for uniqueness.
func generateShortID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp
		return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
	}
	return hex.EncodeToString(b)
}

// Start creates the detached tmux session and sends the command to it.
func (s *Session) Start(command string) error {
	s.Command = command
	s.Created = time.Now()

	if s.Exists() {
		// Shouldn't happen with unique IDs; regenerate rather than clobber.
		s.Name = SessionPrefix + sanitizeName(s.DisplayName) + "_" + generateShortID()
	}

	workDir := s.WorkDir
	if workDir == "" {
		workDir = os.Getenv("HOME")
	}

	cmd := exec.Command("tmux", "new-session", "-d", "-s", s.Name, "-c", workDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create tmux session: %w (output: %s)", err, string(output))
	}

	// Batched session options: scrollback for agent output, fast escape for
	// editors, mouse for operators who attach.
	_ = exec.Command("tmux",
		"set-option", "-t", s.Name, "history-limit", "10000", ";",
		"set-option", "-t", s.Name, "escape-time", "10", ";",
		"set-option", "-t", s.Name, "mouse", "on").Run()

	if command != "" {
		if err := s.SendKeysAndEnter(command); err != nil {
			return fmt.Errorf("failed to send command: %w", err)
		}
	}

	log.Info("session_started", slog.String("session", s.Name), slog.String("workdir", workDir))
	return nil
}

// SendKeysAndEnter types text into the session followed by Enter.
func (s *Session) SendKeysAndEnter(text string) error {
	cmd := exec.Command("tmux", "send-keys", "-t", s.Name, text, "Enter")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux send-keys: %w (output: %s)", err, string(output))
	}
	return nil
}

// Exists checks if the tmux session is alive.
func (s *Session) Exists() bool {
	return exec.Command("tmux", "has-session", "-t", s.Name).Run() == nil
}

// Kill terminates the tmux session.
func (s *Session) Kill() error {
	return exec.Command("tmux", "kill-session", "-t", s.Name).Run()
}

// Attach runs `tmux attach-session` wired to the current terminal and blocks
// until the user detaches.
func (s *Session) Attach() error {
	cmd := exec.Command("tmux", "attach-session", "-t", s.Name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ListSessions returns the names of live slackline tmux sessions.
func ListSessions() ([]string, error) {
	out, err := exec.Command("tmux", "list-sessions", "-F", "#{session_name}").Output()
	if err != nil {
		// No server running means no sessions, not an error worth surfacing.
		return nil, nil
	}

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.HasPrefix(line, SessionPrefix) {
			names = append(names, line)
		}
	}
	return names, nil
}
