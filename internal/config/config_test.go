package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempStateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	// Keep process env from leaking into config resolution.
	t.Setenv(EnvBotToken, "")
	t.Setenv(EnvChannelID, "")
	t.Setenv(EnvBotUserID, "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	useTempStateDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Watch.IntervalSecs)
	assert.Equal(t, 900, cfg.Watch.TimeoutSecs)
	assert.Equal(t, 900, cfg.Watch.WaitTimeoutSecs)
	assert.Equal(t, 5, cfg.Launcher.PollSecs)
	assert.Equal(t, "/claude", cfg.Launcher.Trigger)
	assert.Equal(t, "claude --dangerously-skip-permissions -p", cfg.Launcher.AgentCommand)
	assert.Equal(t, filepath.Join(StateDir(), "sessions"), cfg.Launcher.LogDir)
	assert.Equal(t, "info", cfg.Logs.Level)
	assert.Equal(t, "json", cfg.Logs.Format)
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := useTempStateDir(t)

	content := `
[slack]
bot_token = "xoxb-file"
channel_id = "C123"

[watch]
interval_secs = 2
timeout_secs = 60

[launcher]
trigger = "/agent"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "xoxb-file", cfg.Slack.BotToken)
	assert.Equal(t, "C123", cfg.Slack.ChannelID)
	assert.Equal(t, 2, cfg.Watch.IntervalSecs)
	assert.Equal(t, 60, cfg.Watch.TimeoutSecs)
	assert.Equal(t, "/agent", cfg.Launcher.Trigger)
	// Unset values still get defaults.
	assert.Equal(t, 900, cfg.Watch.WaitTimeoutSecs)
	assert.Equal(t, 5, cfg.Launcher.PollSecs)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := useTempStateDir(t)

	content := `
[slack]
bot_token = "xoxb-file"
channel_id = "CFILE"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0600))
	t.Setenv(EnvBotToken, "xoxb-env")
	t.Setenv(EnvBotUserID, "UBOT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "xoxb-env", cfg.Slack.BotToken)
	assert.Equal(t, "CFILE", cfg.Slack.ChannelID)
	assert.Equal(t, "UBOT", cfg.Slack.BotUserID)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := useTempStateDir(t)
	os.Unsetenv(EnvBotToken)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SLACK_BOT_TOKEN=xoxb-dotenv\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "xoxb-dotenv", cfg.Slack.BotToken)
}

func TestLoad_BadTOML(t *testing.T) {
	dir := useTempStateDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("not [valid"), 0600))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateSlack(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateSlack())

	cfg.Slack.BotToken = "xoxb-x"
	assert.Error(t, cfg.ValidateSlack())

	cfg.Slack.ChannelID = "C123"
	assert.NoError(t, cfg.ValidateSlack())
}

func TestStateDir_EnvOverride(t *testing.T) {
	t.Setenv(DirEnv, "/custom/dir")
	assert.Equal(t, "/custom/dir", StateDir())
	assert.Equal(t, "/custom/dir/questions", QuestionsDir())
}
