// Package llm is the gateway to the chat-completion providers that
// generate, judge, and rewrite meeting summaries. All three providers
// speak the OpenAI chat-completions dialect, so one wire client serves
// them all; the registry maps a short model key to the provider's
// endpoint, credential variable, and upstream model identifier.
package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Provider describes one registered chat-completion backend.
type Provider struct {
	// Key is the short name users pass as -model (e.g. "qwen-max").
	Key string `json:"key"`
	// DisplayName is shown in listings.
	DisplayName string `json:"display_name"`
	// EnvVar names the environment variable holding the API key.
	EnvVar string `json:"env_var"`
	// Endpoint is the full chat-completions URL.
	Endpoint string `json:"endpoint"`
	// Model is the provider-side model identifier sent on the wire.
	Model string `json:"model"`
}

// Configured reports whether the provider's credential is present.
func (p Provider) Configured() bool {
	return os.Getenv(p.EnvVar) != ""
}

// DefaultProviders returns the built-in provider registry.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Key:         "qwen-max",
			DisplayName: "通义千问 Max",
			EnvVar:      "DASHSCOPE_API_KEY",
			Endpoint:    "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions",
			Model:       "qwen-max",
		},
		{
			Key:         "deepseek-chat",
			DisplayName: "DeepSeek Chat",
			EnvVar:      "DEEPSEEK_API_KEY",
			Endpoint:    "https://api.deepseek.com/chat/completions",
			Model:       "deepseek-chat",
		},
		{
			Key:         "doubao-pro",
			DisplayName: "豆包 Pro",
			EnvVar:      "DOUBAO_API_KEY",
			Endpoint:    "https://ark.cn-beijing.volces.com/api/v3/chat/completions",
			Model:       "doubao-pro-32k",
		},
	}
}

// supportedKeys renders the registry's model keys for error messages,
// sorted so the message is stable.
func supportedKeys(providers []Provider) string {
	keys := make([]string, len(providers))
	for i, p := range providers {
		keys[i] = p.Key
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// resolve looks up a model key and its credential. Both failure modes
// are configuration errors: the caller picked a model we don't know, or
// knows one we cannot authenticate against.
func resolve(providers []Provider, modelKey string) (Provider, string, error) {
	for _, p := range providers {
		if p.Key != modelKey {
			continue
		}
		apiKey := os.Getenv(p.EnvVar)
		if apiKey == "" {
			return Provider{}, "", configErrorf("model %q requires %s to be set", modelKey, p.EnvVar)
		}
		return p, apiKey, nil
	}
	return Provider{}, "", configErrorf("unknown model %q (supported models: %s)", modelKey, supportedKeys(providers))
}

// String renders a provider for logs and listings.
func (p Provider) String() string {
	return fmt.Sprintf("%s (%s via %s)", p.Key, p.Model, p.DisplayName)
}
