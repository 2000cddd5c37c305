package statedb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "launcher.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	version, err := db.GetMeta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestLaunchCRUD(t *testing.T) {
	db := newTestDB(t)

	started := time.Now().Truncate(time.Second)
	require.NoError(t, db.SaveLaunch(&Launch{
		ThreadTS: "1700000010.000000",
		Session:  "slackline_fix_ab12",
		LogFile:  "/tmp/fix.log",
		Task:     "fix the bug",
		Started:  started,
	}))
	require.NoError(t, db.SaveLaunch(&Launch{
		ThreadTS: "1700000020.000000",
		Session:  "slackline_deploy_cd34",
		Started:  started.Add(time.Minute),
	}))

	launches, err := db.LoadLaunches()
	require.NoError(t, err)
	require.Len(t, launches, 2)

	// Ordered by start time.
	assert.Equal(t, "slackline_fix_ab12", launches[0].Session)
	assert.Equal(t, "fix the bug", launches[0].Task)
	assert.Equal(t, "/tmp/fix.log", launches[0].LogFile)
	assert.Equal(t, started.Unix(), launches[0].Started.Unix())

	require.NoError(t, db.DeleteLaunch("1700000010.000000"))
	launches, err = db.LoadLaunches()
	require.NoError(t, err)
	require.Len(t, launches, 1)
	assert.Equal(t, "slackline_deploy_cd34", launches[0].Session)
}

func TestSaveLaunch_ReplacesSameThread(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveLaunch(&Launch{ThreadTS: "t1", Session: "a", Started: time.Now()}))
	require.NoError(t, db.SaveLaunch(&Launch{ThreadTS: "t1", Session: "b", Started: time.Now()}))

	launches, err := db.LoadLaunches()
	require.NoError(t, err)
	require.Len(t, launches, 1)
	assert.Equal(t, "b", launches[0].Session)
}

func TestProcessed(t *testing.T) {
	db := newTestDB(t)

	done, err := db.IsProcessed("1700000010.000000")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, db.MarkProcessed("1700000010.000000"))
	done, err = db.IsProcessed("1700000010.000000")
	require.NoError(t, err)
	assert.True(t, done)

	// Re-marking is not an error.
	require.NoError(t, db.MarkProcessed("1700000010.000000"))
}

func TestTrimProcessed(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, db.MarkProcessed(string(rune('a'+i))))
	}
	require.NoError(t, db.TrimProcessed(3))

	var kept int
	for i := 0; i < 10; i++ {
		done, err := db.IsProcessed(string(rune('a' + i)))
		require.NoError(t, err)
		if done {
			kept++
		}
	}
	assert.Equal(t, 3, kept)
}

func TestLastChecked(t *testing.T) {
	db := newTestDB(t)

	last, err := db.LastChecked()
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, db.SetLastChecked(1700000010.000123))
	last, err = db.LastChecked()
	require.NoError(t, err)
	assert.Equal(t, 1700000010.000123, last)
}

func TestMeta(t *testing.T) {
	db := newTestDB(t)

	val, err := db.GetMeta("missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, db.SetMeta("k", "v1"))
	require.NoError(t, db.SetMeta("k", "v2"))
	val, err = db.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)
}
