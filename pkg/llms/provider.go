package llms

import "strings"

// Providers with first-class structured output and tool calling.
var structuredOutputProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"google":    true,
	"gemini":    true,
}

// Providers known to lack structured output support; they get the
// text-mode protocol instead.
var textModeProviders = map[string]bool{
	"ollama":   true,
	"together": true,
	"groq":     true,
}

// ProviderOf returns the provider prefix of a "provider:model"
// identifier, or "" when the identifier has no prefix.
func ProviderOf(model string) string {
	if idx := strings.Index(model, ":"); idx > 0 {
		return strings.ToLower(model[:idx])
	}
	return ""
}

// SupportsStructuredOutput reports whether the model's provider handles
// schema-constrained output and tool calling natively. Unknown providers
// are treated conservatively as text-mode.
func SupportsStructuredOutput(model string) bool {
	provider := ProviderOf(model)
	if structuredOutputProviders[provider] {
		return true
	}
	if textModeProviders[provider] {
		return false
	}
	return false
}
