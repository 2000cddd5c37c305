// Package escalation implements the question reply race: a Slack thread and
// the controlling terminal compete to answer one question, and whichever side
// produces an answer first wins.
//
// The single-resolution point is the answer file, created with O_EXCL. The
// background watcher writes it when a Slack reply arrives; the terminal side
// never writes it, so a terminal win is realized by the host abandoning the
// wait task. At most one answer is ever recorded per question.
package escalation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tcopeland/slackline/internal/question"
)

// ErrAlreadyAnswered is returned when an answer file already exists for a
// question. The race has been resolved; the new answer is discarded.
var ErrAlreadyAnswered = errors.New("question already answered")

// Meta is the ephemeral question record, persisted for the duration of one
// hook invocation.
type Meta struct {
	QuestionID string              `json:"question_id"`
	ChannelID  string              `json:"channel_id"`
	ThreadTS   string              `json:"thread_ts"`
	BaselineTS float64             `json:"baseline_ts"`
	LastSeenTS float64             `json:"last_seen_ts"`
	Questions  []question.Question `json:"questions"`
	CreatedAt  time.Time           `json:"created_at"`
}

// FirstOptions returns the option list of the first question, which is what
// replies are normalized against.
func (m *Meta) FirstOptions() []question.Option {
	if len(m.Questions) == 0 {
		return nil
	}
	return m.Questions[0].Options
}

var questionIDRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeQuestionID makes an agent-supplied session ID safe for use in file
// names.
func SanitizeQuestionID(id string) string {
	// filepath.Base maps "" to "."; the regexp then turns any leftover
	// punctuation into dashes, so trim those before deciding the ID is empty.
	id = questionIDRe.ReplaceAllString(filepath.Base(id), "-")
	id = strings.Trim(id, "-")
	if id == "" {
		return "unknown"
	}
	return id
}

// Store keeps per-question race artifacts (meta, answer, watcher pid) in one
// directory.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("escalation: create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dir, id+".meta.json")
}

// AnswerPath returns the answer file path for a question. The path is part of
// the hook's deny instructions, so it is public.
func (s *Store) AnswerPath(id string) string {
	return filepath.Join(s.dir, id+".answer.txt")
}

func (s *Store) pidPath(id string) string {
	return filepath.Join(s.dir, id+".watch.pid")
}

// SaveMeta writes the question record atomically.
func (s *Store) SaveMeta(m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("escalation: marshal meta: %w", err)
	}
	path := s.metaPath(m.QuestionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("escalation: write meta: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadMeta reads the question record for a question ID.
func (s *Store) LoadMeta(id string) (*Meta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, fmt.Errorf("escalation: read meta: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("escalation: parse meta: %w", err)
	}
	return &m, nil
}

// WriteAnswer records the final answer for a question. The O_EXCL create is
// the race's resolution: the second writer gets ErrAlreadyAnswered.
func (s *Store) WriteAnswer(id, answer string) error {
	f, err := os.OpenFile(s.AnswerPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyAnswered
		}
		return fmt.Errorf("escalation: create answer file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(answer + "\n"); err != nil {
		return fmt.Errorf("escalation: write answer: %w", err)
	}
	return nil
}

// ReadAnswer returns the recorded answer, if any.
func (s *Store) ReadAnswer(id string) (string, bool) {
	data, err := os.ReadFile(s.AnswerPath(id))
	if err != nil {
		return "", false
	}
	answer := strings.TrimSpace(string(data))
	return answer, answer != ""
}

// WritePID records the background watcher's pid for later cleanup.
func (s *Store) WritePID(id string, pid int) error {
	return os.WriteFile(s.pidPath(id), []byte(strconv.Itoa(pid)), 0600)
}

// StopWatcher signals the recorded watcher process, if any. Best effort: a
// missing pid file or an already-dead process are not errors.
func (s *Store) StopWatcher(id string) {
	data, err := os.ReadFile(s.pidPath(id))
	if err != nil {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return
	}
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Signal(syscall.SIGTERM)
	}
}

// Clean removes all artifacts for a question.
func (s *Store) Clean(id string) {
	for _, path := range []string{s.metaPath(id), s.AnswerPath(id), s.pidPath(id)} {
		_ = os.Remove(path)
	}
}
