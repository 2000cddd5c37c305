package escalation

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_ReturnsExistingAnswer(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.WriteAnswer("q1", "Blue"))

	w := NewWaiter(store)
	answer, err := w.Wait(context.Background(), "q1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Blue", answer)
}

func TestWait_UnblocksOnAnswerWrite(t *testing.T) {
	store := newTestStore(t)
	w := NewWaiter(store)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = store.WriteAnswer("q1", "Blue")
	}()

	start := time.Now()
	answer, err := w.Wait(context.Background(), "q1", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Blue", answer)
	// Must come back via fsnotify or the fallback poll, not the full timeout.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWait_TimesOut(t *testing.T) {
	store := newTestStore(t)
	w := NewWaiter(store)

	_, err := w.Wait(context.Background(), "q1", 50*time.Millisecond)
	assert.True(t, errors.Is(err, ErrNoAnswer))
}

func TestWait_WatchDirMissing(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.Dir()))

	// fsnotify can't watch a missing directory; Wait must fall back to
	// polling and still honor the timeout.
	w := NewWaiter(store)
	_, err := w.Wait(context.Background(), "q1", 100*time.Millisecond)
	assert.True(t, errors.Is(err, ErrNoAnswer))
}

func TestWait_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	w := NewWaiter(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Wait(ctx, "q1", time.Minute)
	assert.True(t, errors.Is(err, context.Canceled))
}
