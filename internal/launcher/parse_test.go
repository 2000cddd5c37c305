package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasMention(t *testing.T) {
	assert.True(t, HasMention("<@UBOT123> /claude do it", "UBOT123"))
	assert.False(t, HasMention("<@UOTHER> /claude do it", "UBOT123"))
	assert.False(t, HasMention("/claude do it", "UBOT123"))
	assert.False(t, HasMention("<@UBOT123> hi", ""))
}

func TestParseCommand(t *testing.T) {
	task, ok := ParseCommand("<@UBOT123> /claude fix the login bug", "/claude")
	assert.True(t, ok)
	assert.Equal(t, "fix the login bug", task)

	// Mention anywhere in the text; trigger must still lead once stripped.
	task, ok = ParseCommand("/claude fix it <@UBOT123>", "/claude")
	assert.True(t, ok)
	assert.Equal(t, "fix it", task)

	_, ok = ParseCommand("<@UBOT123> what's the status?", "/claude")
	assert.False(t, ok)

	_, ok = ParseCommand("<@UBOT123> /claude", "/claude")
	assert.False(t, ok)

	_, ok = ParseCommand("<@UBOT123> /claude   ", "/claude")
	assert.False(t, ok)
}

func TestSessionSlug(t *testing.T) {
	assert.Equal(t, "fix-the-login", SessionSlug("Fix the login bug"))
	assert.Equal(t, "deploy", SessionSlug("deploy"))
	assert.Equal(t, "task", SessionSlug("!!!"))
	assert.Equal(t, "task", SessionSlug(""))
	assert.Equal(t, "whats-broken-in", SessionSlug("what's broken in prod?"))
}
