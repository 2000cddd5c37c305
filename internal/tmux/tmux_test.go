package tmux

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "fix-login", sanitizeName("fix-login"))
	assert.Equal(t, "fix-login-bug", sanitizeName("fix login bug"))
	assert.Equal(t, "a-b", sanitizeName("a.:$b"))
	assert.Equal(t, "task", sanitizeName("!!!"))
	assert.Equal(t, "task", sanitizeName(""))
}

func TestNewSession_NamePrefixAndUniqueness(t *testing.T) {
	a := NewSession("fix login", "/tmp")
	b := NewSession("fix login", "/tmp")

	assert.True(t, strings.HasPrefix(a.Name, SessionPrefix+"fix-login_"))
	assert.NotEqual(t, a.Name, b.Name)
	assert.Equal(t, "fix login", a.DisplayName)
	assert.Equal(t, "/tmp", a.WorkDir)
}

func TestFromName(t *testing.T) {
	s := FromName("slackline_fix-login_ab12cd34")
	assert.Equal(t, "slackline_fix-login_ab12cd34", s.Name)
	assert.Equal(t, "fix-login_ab12cd34", s.DisplayName)
}

func TestGenerateShortID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := generateShortID()
		assert.Len(t, id, 8)
		assert.False(t, seen[id], "duplicate short id %s", id)
		seen[id] = true
	}
}
