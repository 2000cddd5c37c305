// Package slackio wraps the Slack Web API calls slackline needs: posting
// messages, listing thread replies, and reading channel history.
package slackio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/tcopeland/slackline/internal/config"
	"github.com/tcopeland/slackline/internal/logging"
)

var log = logging.ForComponent(logging.CompSlack)

// Message is a channel or thread message with the fields reply filtering needs.
type Message struct {
	// TS is the Slack timestamp parsed as a float for ordering comparisons.
	TS float64

	// RawTS is the original Slack timestamp string (thread anchor format).
	RawTS string

	Text string
	User string

	// FromBot is true for bot-authored messages and messages with a subtype
	// (joins, edits, thread broadcasts). Neither counts as an operator reply.
	FromBot bool
}

// Client talks to one Slack channel on behalf of one bot identity.
// All calls share a rate limiter so poll loops stay inside Slack's tier limits.
type Client struct {
	api       *slack.Client
	channelID string
	botUserID string
	limiter   *rate.Limiter
}

// New builds a Client from Slack configuration.
func New(cfg config.SlackConfig) *Client {
	return &Client{
		api:       slack.New(cfg.BotToken),
		channelID: cfg.ChannelID,
		botUserID: cfg.BotUserID,
		// Tier 3 methods allow ~50 req/min; 1 req/sec with a small burst
		// keeps a watcher plus the launcher comfortably under that.
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// ChannelID returns the configured channel.
func (c *Client) ChannelID() string { return c.channelID }

// BotUserID returns the configured bot identity (may be empty until AuthCheck).
func (c *Client) BotUserID() string { return c.botUserID }

// AuthCheck verifies the token and fills in the bot user ID when the config
// left it empty.
func (c *Client) AuthCheck(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack: auth test: %w", err)
	}
	if c.botUserID == "" {
		c.botUserID = resp.UserID
	}
	return resp.User, nil
}

// JoinChannel joins the configured channel. Best effort; already-joined and
// permission errors are logged and swallowed.
func (c *Client) JoinChannel(ctx context.Context) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	if _, _, _, err := c.api.JoinConversationContext(ctx, c.channelID); err != nil {
		log.Debug("join_channel_failed", slog.String("channel", c.channelID), slog.String("error", err.Error()))
	}
}

// Post sends a top-level channel message and returns its timestamp, which is
// also the thread anchor for replies.
func (c *Client) Post(ctx context.Context, text string) (string, error) {
	return c.post(ctx, "", text)
}

// PostThreaded sends a reply into an existing thread.
func (c *Client) PostThreaded(ctx context.Context, threadTS, text string) error {
	_, err := c.post(ctx, threadTS, text)
	return err
}

func (c *Client) post(ctx context.Context, threadTS, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, c.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	return ts, nil
}

// Replies lists the replies in a thread, excluding the anchor message itself.
func (c *Client) Replies(ctx context.Context, threadTS string) ([]Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: c.channelID,
		Timestamp: threadTS,
		Limit:     100,
	})
	if err != nil {
		return nil, fmt.Errorf("slack: conversation replies: %w", err)
	}

	var out []Message
	for _, m := range msgs {
		if m.Timestamp == threadTS {
			continue // thread anchor
		}
		out = append(out, convert(m))
	}
	return out, nil
}

// History returns the most recent channel messages, newest first (Slack's
// native order).
func (c *Client) History(ctx context.Context, limit int) ([]Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: c.channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("slack: conversation history: %w", err)
	}

	out := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, convert(m))
	}
	return out, nil
}

func convert(m slack.Message) Message {
	return Message{
		TS:      ParseTS(m.Timestamp),
		RawTS:   m.Timestamp,
		Text:    m.Text,
		User:    m.User,
		FromBot: m.BotID != "" || m.SubType != "",
	}
}

// ParseTS parses a Slack "seconds.micros" timestamp string. Returns 0 for
// unparseable input so missing timestamps sort before every real message.
func ParseTS(ts string) float64 {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return f
}
