package llms

import "strings"

// Context window sizes for known models. Lookup is by substring so that
// dated or suffixed identifiers still match.
var modelTokenLimits = map[string]int{
	"openai:gpt-4.1-mini":         1047576,
	"openai:gpt-4.1-nano":         1047576,
	"openai:gpt-4.1":              1047576,
	"openai:gpt-4o-mini":          128000,
	"openai:gpt-4o":               128000,
	"openai:o4-mini":              200000,
	"openai:o3-mini":              200000,
	"openai:o3":                   200000,
	"openai:o1":                   200000,
	"anthropic:claude-opus-4":     200000,
	"anthropic:claude-sonnet-4":   200000,
	"anthropic:claude-3-7-sonnet": 200000,
	"anthropic:claude-3-5-sonnet": 200000,
	"anthropic:claude-3-5-haiku":  200000,
	"google:gemini-1.5-pro":       2097152,
	"google:gemini-1.5-flash":     1048576,
	"google:gemini-pro":           32768,
	"ollama:codellama":            16384,
	"ollama:llama2":               4096,
	"ollama:mistral":              32768,
}

// ModelTokenLimit looks up the context window for a model identifier.
// Returns false when the model is unknown.
func ModelTokenLimit(model string) (int, bool) {
	for key, limit := range modelTokenLimits {
		if strings.Contains(model, key) {
			return limit, true
		}
	}
	return 0, false
}

// IsTokenLimitExceeded classifies a provider error as a context-window
// overflow. The model identifier, when given, narrows the check to one
// provider's error patterns; otherwise all providers are checked.
func IsTokenLimitExceeded(err error, model string) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	provider := ""
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "openai:"):
		provider = "openai"
	case strings.HasPrefix(m, "anthropic:"):
		provider = "anthropic"
	case strings.HasPrefix(m, "gemini:"), strings.HasPrefix(m, "google:"):
		provider = "gemini"
	}

	switch provider {
	case "openai":
		return openaiTokenLimit(errStr)
	case "anthropic":
		return anthropicTokenLimit(errStr)
	case "gemini":
		return geminiTokenLimit(errStr)
	}

	return openaiTokenLimit(errStr) || anthropicTokenLimit(errStr) || geminiTokenLimit(errStr)
}

func openaiTokenLimit(errStr string) bool {
	if strings.Contains(errStr, "context_length_exceeded") {
		return true
	}
	badRequest := strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "invalid_request") ||
		strings.Contains(errStr, "400")
	if !badRequest {
		return false
	}
	for _, keyword := range []string{"token", "context", "length", "maximum context", "reduce"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func anthropicTokenLimit(errStr string) bool {
	return strings.Contains(errStr, "prompt is too long")
}

func geminiTokenLimit(errStr string) bool {
	return strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "resource exhausted") ||
		strings.Contains(errStr, "resourceexhausted")
}

// RemoveUpToLastAIMessage truncates a transcript for token-limit
// recovery: everything from the most recent assistant message onward is
// dropped. A transcript with no assistant message is returned unchanged.
func RemoveUpToLastAIMessage(messages []Message) []Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[:i]
		}
	}
	return messages
}
