package launcher

import (
	"regexp"
	"strings"
)

var mentionRe = regexp.MustCompile(`<@[A-Z0-9]+>`)

// HasMention reports whether the message text mentions the given user ID.
func HasMention(text, userID string) bool {
	return userID != "" && strings.Contains(text, "<@"+userID+">")
}

// ParseCommand extracts the task text from a mention message.
//
// Expected shape: "<@UBOT> /claude fix the login bug". Mentions are stripped,
// then the trigger keyword must lead; the remainder is the task. Returns
// ok=false for non-command mentions or a trigger with no task text.
func ParseCommand(text, trigger string) (string, bool) {
	stripped := strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	if !strings.HasPrefix(stripped, trigger) {
		return "", false
	}
	task := strings.TrimSpace(strings.TrimPrefix(stripped, trigger))
	if task == "" {
		return "", false
	}
	return task, true
}

var slugStripRe = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

// SessionSlug derives a short human-readable name from task text: the first
// three words, lowercased. Uniqueness comes from the tmux session's random
// suffix, not from the slug.
func SessionSlug(task string) string {
	words := strings.Fields(slugStripRe.ReplaceAllString(task, ""))
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return "task"
	}
	return strings.ToLower(strings.Join(words, "-"))
}
