package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wrenware/scribe/internal/defaults"
	"github.com/wrenware/scribe/internal/scene"
)

// runInit initializes a scribe working directory with default files.
// It creates the directory tree and a default prompt for every scene
// from the bundled category templates. Existing files are never
// overwritten, so re-running init on a live workspace is safe.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing scribe workspace in %s\n", dir)

	for _, sub := range []string{"prompts", "outputs", "evaluations", "logs/commands", "logs/evaluations"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, defaults.ConfigYAML); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	// Each scene starts from its category's template. Scenes in the same
	// category share wording until someone saves a first version.
	for _, sc := range scene.All() {
		template, err := defaults.PromptTemplate(sc.Category)
		if err != nil {
			return fmt.Errorf("seed prompt for %s: %w", sc.Key, err)
		}
		promptDir := filepath.Join(dir, "prompts", sc.Category, sc.Subtype)
		if err := os.MkdirAll(promptDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", promptDir, err)
		}
		promptPath := filepath.Join(promptDir, "default.md")
		if err := writeIfMissing(promptPath, template); err != nil {
			return err
		}
		fmt.Fprintf(w, "  ✓ %s\n", promptPath)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml, export your provider API keys, then run 'scribe serve'.")
	fmt.Fprintln(w, "Keys: DASHSCOPE_API_KEY, DEEPSEEK_API_KEY, DOUBAO_API_KEY (a .env file works too).")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist. This ensures init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, skip
	}
	return os.WriteFile(path, content, 0o644)
}
