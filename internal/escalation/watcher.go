package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tcopeland/slackline/internal/logging"
	"github.com/tcopeland/slackline/internal/question"
	"github.com/tcopeland/slackline/internal/slackio"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// ErrNoAnswer is the timeout outcome: neither reply channel resolved the
// question within the bound.
var ErrNoAnswer = errors.New("no answer before timeout")

// Chat is the slice of the Slack client the watcher needs.
type Chat interface {
	BotUserID() string
	Replies(ctx context.Context, threadTS string) ([]slackio.Message, error)
	PostThreaded(ctx context.Context, threadTS, text string) error
}

// Watcher polls a question's Slack thread until a reply arrives, the answer
// file appears (someone else resolved the race), or the timeout elapses.
type Watcher struct {
	store    *Store
	chat     Chat
	interval time.Duration
	timeout  time.Duration
}

// NewWatcher builds a watcher with the given poll interval and overall bound.
func NewWatcher(store *Store, chat Chat, interval, timeout time.Duration) *Watcher {
	return &Watcher{store: store, chat: chat, interval: interval, timeout: timeout}
}

// Run polls until resolution. Returns the answer (possibly written by an
// earlier check), or ErrNoAnswer on timeout.
func (w *Watcher) Run(ctx context.Context, questionID string) (string, error) {
	deadline := time.Now().Add(w.timeout)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		// The race may already be resolved (a one-shot check, or a previous
		// iteration) -- exit without another API call.
		if answer, ok := w.store.ReadAnswer(questionID); ok {
			return answer, nil
		}

		answer, err := w.CheckOnce(ctx, questionID)
		if err != nil && !errors.Is(err, ErrAlreadyAnswered) {
			watchLog.Warn("reply_check_failed", slog.String("question", questionID), slog.String("error", err.Error()))
		}
		if answer != "" {
			return answer, nil
		}

		if time.Now().After(deadline) {
			watchLog.Info("watcher_timeout", slog.String("question", questionID))
			return "", ErrNoAnswer
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckOnce performs a single reply poll. Returns the normalized answer when
// a qualifying reply was found and recorded, "" when there is nothing new.
//
// A reply qualifies when it is in the question's thread, not authored by the
// bot (own identity or any bot/subtype message), and newer than both the
// question's post time and the last reply already seen.
func (w *Watcher) CheckOnce(ctx context.Context, questionID string) (string, error) {
	meta, err := w.store.LoadMeta(questionID)
	if err != nil {
		return "", err
	}
	if meta.ThreadTS == "" {
		return "", fmt.Errorf("escalation: question %s has no thread", questionID)
	}

	replies, err := w.chat.Replies(ctx, meta.ThreadTS)
	if err != nil {
		return "", err
	}

	floor := meta.BaselineTS
	if meta.LastSeenTS > floor {
		floor = meta.LastSeenTS
	}

	var latest *slackio.Message
	for i := range replies {
		m := replies[i]
		if m.FromBot || m.User == w.chat.BotUserID() {
			continue
		}
		if m.TS <= floor {
			continue
		}
		if latest == nil || m.TS > latest.TS {
			latest = &replies[i]
		}
	}
	if latest == nil {
		return "", nil
	}

	answer := question.NormalizeReply(latest.Text, meta.FirstOptions())
	if answer == "" {
		return "", nil
	}

	meta.LastSeenTS = latest.TS
	if err := w.store.SaveMeta(meta); err != nil {
		watchLog.Warn("meta_update_failed", slog.String("question", questionID), slog.String("error", err.Error()))
	}

	if err := w.store.WriteAnswer(questionID, answer); err != nil {
		return "", err
	}
	watchLog.Info("answer_recorded", slog.String("question", questionID), slog.String("answer", answer))

	// Confirm in the thread so the operator knows the reply landed.
	confirm := fmt.Sprintf(":white_check_mark: Got it! Answering with: *%s*", answer)
	if err := w.chat.PostThreaded(ctx, meta.ThreadTS, confirm); err != nil {
		watchLog.Debug("confirm_post_failed", slog.String("question", questionID), slog.String("error", err.Error()))
	}

	return answer, nil
}
