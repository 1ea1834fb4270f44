package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmAcceptsExactValue(t *testing.T) {
	var out bytes.Buffer
	p := NewStandardPrompter(strings.NewReader("docs/a.txt\n"), &out)

	confirmed, err := p.Confirm("You are about to permanently delete 'docs/a.txt'.", "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Contains(t, out.String(), "You are about to permanently delete 'docs/a.txt'.")
	assert.Contains(t, out.String(), "To confirm, please type 'docs/a.txt':")
}

func TestConfirmTrimsSurroundingWhitespace(t *testing.T) {
	p := NewStandardPrompter(strings.NewReader("  docs/a.txt  \n"), &bytes.Buffer{})

	confirmed, err := p.Confirm("delete?", "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestConfirmRejectsMismatch(t *testing.T) {
	p := NewStandardPrompter(strings.NewReader("yes\n"), &bytes.Buffer{})

	confirmed, err := p.Confirm("delete?", "docs/a.txt")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestConfirmTreatsEOFAsDecline(t *testing.T) {
	p := NewStandardPrompter(strings.NewReader(""), &bytes.Buffer{})

	confirmed, err := p.Confirm("delete?", "docs/a.txt")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestConfirmRequiresExpectedValue(t *testing.T) {
	p := NewStandardPrompter(strings.NewReader("anything\n"), &bytes.Buffer{})

	_, err := p.Confirm("delete?", "")
	require.Error(t, err)
}
