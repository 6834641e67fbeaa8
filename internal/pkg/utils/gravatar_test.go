package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetGravatarURL(t *testing.T) {
	want := "https://www.gravatar.com/avatar/b4c9a289323b21a01c3e940f150eb9b8c542587f1abfd8f0e1cc1ffc5e475514?s=80&d=mp"
	assert.Equal(t, want, GetGravatarURL("user@example.com", 80))

	// Address normalization: case and surrounding whitespace do not change
	// the avatar identity.
	assert.Equal(t, GetGravatarURL("user@example.com", 80), GetGravatarURL("  USER@Example.COM ", 80))

	// Non-positive sizes fall back to the default.
	assert.Contains(t, GetGravatarURL("user@example.com", 0), "?s=200&")
}
