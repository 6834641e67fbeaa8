package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const gravatarDefaultSize = 200

// GetGravatarURL builds the Gravatar avatar URL for an email address using
// the SHA-256 address format. Unknown addresses resolve to the "mystery
// person" placeholder so profile responses always carry a usable image.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = gravatarDefaultSize
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d&d=mp", hex.EncodeToString(sum[:]), size)
}
