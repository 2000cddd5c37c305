package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var colorOptions = []Option{
	{Label: "Red", Description: "the warm one"},
	{Label: "Blue"},
	{Label: "Green", Description: "the calm one"},
}

func TestNormalizeReply_NumericIndex(t *testing.T) {
	assert.Equal(t, "Red", NormalizeReply("1", colorOptions))
	assert.Equal(t, "Blue", NormalizeReply("2", colorOptions))
	assert.Equal(t, "Green", NormalizeReply(" 3 ", colorOptions))
}

func TestNormalizeReply_NumericOutOfRange(t *testing.T) {
	// Out-of-range numbers fall back to free text.
	assert.Equal(t, "4", NormalizeReply("4", colorOptions))
	assert.Equal(t, "0", NormalizeReply("0", colorOptions))
	assert.Equal(t, "-1", NormalizeReply("-1", colorOptions))
	assert.Equal(t, "2", NormalizeReply("2", nil))
}

func TestNormalizeReply_LabelMatch(t *testing.T) {
	assert.Equal(t, "Blue", NormalizeReply("blue", colorOptions))
	assert.Equal(t, "Red", NormalizeReply("RED", colorOptions))
}

func TestNormalizeReply_FreeText(t *testing.T) {
	assert.Equal(t, "use the default", NormalizeReply("use the default", colorOptions))
	assert.Equal(t, "", NormalizeReply("   ", colorOptions))
}

func TestFormatTerminal_SingleQuestion(t *testing.T) {
	out := FormatTerminal([]Question{{Text: "Pick a color", Options: colorOptions}})

	assert.Contains(t, out, "Pick a color")
	assert.Contains(t, out, "1. Red - the warm one")
	assert.Contains(t, out, "2. Blue")
	assert.NotContains(t, out, "Question 1:")
}

func TestFormatTerminal_MultipleQuestions(t *testing.T) {
	out := FormatTerminal([]Question{
		{Text: "Pick a color", Options: colorOptions},
		{Text: "Proceed?"},
	})

	assert.Contains(t, out, "Question 1: Pick a color")
	assert.Contains(t, out, "Question 2: Proceed?")
}

func TestFormatSlack(t *testing.T) {
	out := FormatSlack([]Question{{Text: "Pick a color", Options: colorOptions}})

	assert.Contains(t, out, "*Pick a color*")
	assert.Contains(t, out, "*1.* `Red` - the warm one")
	assert.Contains(t, out, "*2.* `Blue`")
	assert.Contains(t, out, "Reply with the option number")
}

func TestFormatSlack_MultipleQuestions(t *testing.T) {
	out := FormatSlack([]Question{
		{Text: "Pick a color"},
		{Text: "Proceed?"},
	})

	assert.Contains(t, out, "*Q1:* Pick a color")
	assert.Contains(t, out, "*Q2:* Proceed?")
}
