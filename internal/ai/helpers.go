package ai

import (
	_ "embed"
	"strings"
)

//go:embed prompts/compose.txt
var composePrompt string

// buildComposePrompt returns the fixed instruction for adding the person into the group photo.
// This is shared across all AI providers.
func buildComposePrompt() string {
	return strings.TrimSpace(composePrompt)
}
