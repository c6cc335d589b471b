package config

import (
	"os"
	"strings"
)

// apiKeysFromConfig reports whether API keys should be read from the
// config's apiKeys map instead of the process environment.
func apiKeysFromConfig() bool {
	return strings.EqualFold(os.Getenv("GET_API_KEYS_FROM_CONFIG"), "true")
}

// ModelAPIKey resolves the API key for a model identifier. Keys come
// from the environment by default, or from the apiKeys map when
// GET_API_KEYS_FROM_CONFIG=true. Unknown providers resolve to "".
func (c *Config) ModelAPIKey(model string) string {
	model = strings.ToLower(model)

	var keyName string
	switch {
	case strings.HasPrefix(model, "openai:"):
		keyName = "OPENAI_API_KEY"
	case strings.HasPrefix(model, "anthropic:"):
		keyName = "ANTHROPIC_API_KEY"
	case strings.HasPrefix(model, "google"):
		keyName = "GOOGLE_API_KEY"
	default:
		return ""
	}

	if apiKeysFromConfig() {
		return c.APIKeys[keyName]
	}
	return os.Getenv(keyName)
}

// TavilyAPIKey resolves the Tavily search API key.
func (c *Config) TavilyAPIKey() string {
	if apiKeysFromConfig() {
		return c.APIKeys["TAVILY_API_KEY"]
	}
	return os.Getenv("TAVILY_API_KEY")
}
