// Package question models an interactive agent question and its option list,
// formats it for the terminal and for Slack, and normalizes replies back to
// an answer string.
package question

import (
	"fmt"
	"strconv"
	"strings"
)

// Option is one selectable choice offered by the agent.
type Option struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Question is a single question from the agent's question tool input.
type Question struct {
	Text    string   `json:"question"`
	Options []Option `json:"options,omitempty"`
}

// FormatTerminal renders questions as plain text for display in the agent's
// terminal. Multiple questions get "Question N:" headers.
func FormatTerminal(questions []Question) string {
	var lines []string
	for qi, q := range questions {
		header := ""
		if len(questions) > 1 {
			header = fmt.Sprintf("Question %d: ", qi+1)
		}
		lines = append(lines, header+strings.TrimSpace(q.Text))
		for oi, opt := range q.Options {
			label := strings.TrimSpace(opt.Label)
			desc := strings.TrimSpace(opt.Description)
			if desc != "" {
				lines = append(lines, fmt.Sprintf("  %d. %s - %s", oi+1, label, desc))
			} else {
				lines = append(lines, fmt.Sprintf("  %d. %s", oi+1, label))
			}
		}
		lines = append(lines, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// FormatSlack renders questions with Slack mrkdwn emphasis, ending with a
// reply hint.
func FormatSlack(questions []Question) string {
	lines := []string{":robot_face: *Agent needs your input:*", ""}
	for qi, q := range questions {
		text := strings.TrimSpace(q.Text)
		if len(questions) > 1 {
			lines = append(lines, fmt.Sprintf("*Q%d:* %s", qi+1, text))
		} else {
			lines = append(lines, fmt.Sprintf("*%s*", text))
		}
		lines = append(lines, "")
		for oi, opt := range q.Options {
			label := strings.TrimSpace(opt.Label)
			desc := strings.TrimSpace(opt.Description)
			if desc != "" {
				lines = append(lines, fmt.Sprintf("  *%d.* `%s` - %s", oi+1, label, desc))
			} else {
				lines = append(lines, fmt.Sprintf("  *%d.* `%s`", oi+1, label))
			}
		}
		lines = append(lines, "")
	}
	lines = append(lines, "_Reply with the option number (e.g._ `1`_) or type your own answer._")
	return strings.Join(lines, "\n")
}

// NormalizeReply maps a raw reply to an answer string:
//   - a number within the option list resolves to that option's label (1-based)
//   - a case-insensitive exact label match resolves to the label
//   - everything else (including out-of-range numbers) passes through as-is
func NormalizeReply(reply string, options []Option) string {
	text := strings.TrimSpace(reply)
	if text == "" {
		return ""
	}

	if idx, err := strconv.Atoi(text); err == nil {
		if idx >= 1 && idx <= len(options) {
			if label := strings.TrimSpace(options[idx-1].Label); label != "" {
				return label
			}
		}
		return text
	}

	lowered := strings.ToLower(text)
	for _, opt := range options {
		label := strings.TrimSpace(opt.Label)
		if label != "" && strings.ToLower(label) == lowered {
			return label
		}
	}
	return text
}
