// Package config loads slackline configuration from TOML, .env and
// environment variables.
//
// Resolution order (later wins): built-in defaults, ~/.slackline/config.toml,
// values from ~/.slackline/.env, process environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ConfigFileName is the TOML config file under the state directory.
const ConfigFileName = "config.toml"

// DirEnv overrides the state directory (default ~/.slackline).
const DirEnv = "SLACKLINE_DIR"

// Environment variable names recognized as overrides.
const (
	EnvBotToken  = "SLACK_BOT_TOKEN"
	EnvChannelID = "SLACK_CHANNEL_ID"
	EnvBotUserID = "SLACK_BOT_USER_ID"
)

// Config is the top-level slackline configuration.
type Config struct {
	Slack    SlackConfig    `toml:"slack"`
	Watch    WatchConfig    `toml:"watch"`
	Launcher LauncherConfig `toml:"launcher"`
	Logs     LogConfig      `toml:"logs"`
}

// SlackConfig identifies the bot and the channel it escalates to.
type SlackConfig struct {
	// BotToken is the xoxb- token. Usually provided via SLACK_BOT_TOKEN.
	BotToken string `toml:"bot_token"`

	// ChannelID is the channel questions and commands flow through.
	ChannelID string `toml:"channel_id"`

	// BotUserID is the bot's member ID, used to recognize mentions and to
	// ignore the bot's own thread replies.
	BotUserID string `toml:"bot_user_id"`
}

// WatchConfig controls the background reply watcher.
type WatchConfig struct {
	// IntervalSecs between Slack reply polls (default: 5)
	IntervalSecs int `toml:"interval_secs"`

	// TimeoutSecs before the watcher gives up (default: 900)
	TimeoutSecs int `toml:"timeout_secs"`

	// WaitTimeoutSecs is the default bound for the blocking wait command
	// (default: 900)
	WaitTimeoutSecs int `toml:"wait_timeout_secs"`
}

// LauncherConfig controls the Slack-command-to-tmux launcher daemon.
type LauncherConfig struct {
	// PollSecs between channel history polls (default: 5)
	PollSecs int `toml:"poll_secs"`

	// Trigger is the command keyword after the bot mention (default: "/claude")
	Trigger string `toml:"trigger"`

	// AgentCommand runs the agent CLI in print mode; the task text is appended
	// as a quoted argument (default: "claude --dangerously-skip-permissions -p")
	AgentCommand string `toml:"agent_command"`

	// LogDir holds per-session logs (default: <state>/sessions)
	LogDir string `toml:"log_dir"`
}

// LogConfig mirrors logging.Config knobs exposed to users.
type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// StateDir returns the slackline state directory.
func StateDir() string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".slackline")
	}
	return filepath.Join(home, ".slackline")
}

// QuestionsDir returns the directory holding per-question race artifacts.
func QuestionsDir() string {
	return filepath.Join(StateDir(), "questions")
}

// Load reads the configuration for the current state directory.
// A missing config file is not an error; defaults and env vars still apply.
func Load() (*Config, error) {
	cfg := defaults()

	// .env next to the config file, matching where deployments keep the token.
	// Missing file is fine; godotenv only fills vars that aren't already set.
	_ = godotenv.Load(filepath.Join(StateDir(), ".env"))

	path := filepath.Join(StateDir(), ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// ValidateSlack reports whether the config is sufficient for Slack API calls.
func (c *Config) ValidateSlack() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("config: missing Slack bot token (set %s or [slack] bot_token)", EnvBotToken)
	}
	if c.Slack.ChannelID == "" {
		return fmt.Errorf("config: missing Slack channel ID (set %s or [slack] channel_id)", EnvChannelID)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Watch: WatchConfig{
			IntervalSecs:    5,
			TimeoutSecs:     900,
			WaitTimeoutSecs: 900,
		},
		Launcher: LauncherConfig{
			PollSecs:     5,
			Trigger:      "/claude",
			AgentCommand: "claude --dangerously-skip-permissions -p",
		},
		Logs: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBotToken); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv(EnvChannelID); v != "" {
		cfg.Slack.ChannelID = v
	}
	if v := os.Getenv(EnvBotUserID); v != "" {
		cfg.Slack.BotUserID = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.IntervalSecs <= 0 {
		cfg.Watch.IntervalSecs = 5
	}
	if cfg.Watch.TimeoutSecs <= 0 {
		cfg.Watch.TimeoutSecs = 900
	}
	if cfg.Watch.WaitTimeoutSecs <= 0 {
		cfg.Watch.WaitTimeoutSecs = 900
	}
	if cfg.Launcher.PollSecs <= 0 {
		cfg.Launcher.PollSecs = 5
	}
	if cfg.Launcher.Trigger == "" {
		cfg.Launcher.Trigger = "/claude"
	}
	if cfg.Launcher.AgentCommand == "" {
		cfg.Launcher.AgentCommand = "claude --dangerously-skip-permissions -p"
	}
	if cfg.Launcher.LogDir == "" {
		cfg.Launcher.LogDir = filepath.Join(StateDir(), "sessions")
	}
	if cfg.Logs.Level == "" {
		cfg.Logs.Level = "info"
	}
	if cfg.Logs.Format == "" {
		cfg.Logs.Format = "json"
	}
}
