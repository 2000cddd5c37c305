package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tcopeland/slackline/internal/logging"
)

var waitLog = logging.ForComponent(logging.CompWait)

// waiterFallbackPoll guards against missed fsnotify events (network
// filesystems, editor rename dances).
const waiterFallbackPoll = 2 * time.Second

// Waiter blocks until a question's answer file appears or a timeout elapses.
// It is the Slack half of the race as seen from the agent: the agent runs it
// as a background task while the terminal stays free for direct input.
type Waiter struct {
	store *Store
}

// NewWaiter builds a waiter over the given store.
func NewWaiter(store *Store) *Waiter {
	return &Waiter{store: store}
}

// Wait blocks until the answer file for questionID holds a non-empty answer,
// the timeout elapses (ErrNoAnswer), or ctx is cancelled.
func (w *Waiter) Wait(ctx context.Context, questionID string, timeout time.Duration) (string, error) {
	if answer, ok := w.store.ReadAnswer(questionID); ok {
		return answer, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Watch the whole store directory: the answer file doesn't exist yet and
	// fsnotify can only watch existing paths. A failed watcher just means the
	// fallback poll does all the work.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		waitLog.Debug("fsnotify_unavailable", slog.String("error", err.Error()))
		watcher = nil
	} else if err := watcher.Add(w.store.Dir()); err != nil {
		waitLog.Debug("fsnotify_add_failed", slog.String("error", err.Error()))
		watcher.Close()
		watcher = nil
	}
	if watcher != nil {
		defer watcher.Close()
	}

	ticker := time.NewTicker(waiterFallbackPoll)
	defer ticker.Stop()

	var events chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}

	for {
		select {
		case <-ctx.Done():
			if answer, ok := w.store.ReadAnswer(questionID); ok {
				return answer, nil
			}
			if ctx.Err() == context.DeadlineExceeded {
				return "", ErrNoAnswer
			}
			return "", ctx.Err()
		case ev := <-events:
			if ev.Name != w.store.AnswerPath(questionID) {
				continue
			}
			if answer, ok := w.store.ReadAnswer(questionID); ok {
				return answer, nil
			}
		case <-ticker.C:
			if answer, ok := w.store.ReadAnswer(questionID); ok {
				return answer, nil
			}
		}
	}
}
