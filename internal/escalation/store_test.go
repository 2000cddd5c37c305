package escalation

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcopeland/slackline/internal/question"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSanitizeQuestionID(t *testing.T) {
	assert.Equal(t, "abc-123", SanitizeQuestionID("abc-123"))
	assert.Equal(t, "a-b", SanitizeQuestionID("a b"))
	assert.Equal(t, "passwd", SanitizeQuestionID("../../etc/passwd"))
	assert.Equal(t, "unknown", SanitizeQuestionID(""))
	// IDs that sanitize down to nothing but dashes also fall back.
	assert.Equal(t, "unknown", SanitizeQuestionID("..."))
	assert.Equal(t, "unknown", SanitizeQuestionID("!!!"))
	assert.Equal(t, "unknown", SanitizeQuestionID("/"))
	// Leading and trailing punctuation is stripped, not kept as dashes.
	assert.Equal(t, "sess-42", SanitizeQuestionID("(sess 42)"))
}

func TestMetaRoundTrip(t *testing.T) {
	store := newTestStore(t)

	meta := &Meta{
		QuestionID: "sess-1",
		ChannelID:  "C123",
		ThreadTS:   "1700000000.000100",
		BaselineTS: 1700000000.0001,
		LastSeenTS: 1700000000.0001,
		Questions: []question.Question{
			{Text: "Pick one", Options: []question.Option{{Label: "A"}, {Label: "B"}}},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveMeta(meta))

	got, err := store.LoadMeta("sess-1")
	require.NoError(t, err)
	assert.Equal(t, meta.ThreadTS, got.ThreadTS)
	assert.Equal(t, meta.BaselineTS, got.BaselineTS)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "Pick one", got.Questions[0].Text)
	assert.Equal(t, []question.Option{{Label: "A"}, {Label: "B"}}, got.FirstOptions())
}

func TestLoadMeta_Missing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadMeta("nope")
	assert.Error(t, err)
}

func TestWriteAnswer_FirstWriterWins(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.WriteAnswer("sess-1", "Blue"))

	// The race is resolved; a second answer must be rejected.
	err := store.WriteAnswer("sess-1", "Red")
	assert.True(t, errors.Is(err, ErrAlreadyAnswered))

	answer, ok := store.ReadAnswer("sess-1")
	require.True(t, ok)
	assert.Equal(t, "Blue", answer)
}

func TestReadAnswer_MissingOrEmpty(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.ReadAnswer("sess-1")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(store.AnswerPath("sess-2"), []byte("  \n"), 0600))
	_, ok = store.ReadAnswer("sess-2")
	assert.False(t, ok)
}

func TestClean(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveMeta(&Meta{QuestionID: "sess-1"}))
	require.NoError(t, store.WriteAnswer("sess-1", "ok"))
	require.NoError(t, store.WritePID("sess-1", 12345))

	store.Clean("sess-1")

	_, err := store.LoadMeta("sess-1")
	assert.Error(t, err)
	_, ok := store.ReadAnswer("sess-1")
	assert.False(t, ok)

	// A fresh answer can be recorded after cleaning.
	assert.NoError(t, store.WriteAnswer("sess-1", "again"))
}

func TestStopWatcher_NoPIDFile(t *testing.T) {
	store := newTestStore(t)
	// Must not panic or error when nothing was recorded.
	store.StopWatcher("sess-1")
}
