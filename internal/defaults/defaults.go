// Package defaults provides embedded copies of the example config and
// the built-in prompt templates for the scribe init subcommand.
package defaults

import (
	"embed"
	"fmt"
)

//go:embed config.example.yaml
var ConfigYAML []byte

//go:embed prompts/*.md
var promptFiles embed.FS

// PromptTemplate returns the built-in summary prompt for a scene
// category. Every category in the taxonomy ships one template; asking
// for anything else is a programming error surfaced as an error, not
// a panic, so init can report it cleanly.
func PromptTemplate(category string) ([]byte, error) {
	data, err := promptFiles.ReadFile("prompts/" + category + ".md")
	if err != nil {
		return nil, fmt.Errorf("no built-in prompt template for category %q", category)
	}
	return data, nil
}
