package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderOf(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"openai:gpt-4.1", "openai"},
		{"Anthropic:claude-sonnet-4", "anthropic"},
		{"ollama:llama2", "ollama"},
		{"gpt-4.1", ""},
		{":gpt-4.1", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProviderOf(tt.model))
		})
	}
}

func TestSupportsStructuredOutput(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"openai:gpt-4.1", true},
		{"anthropic:claude-sonnet-4", true},
		{"google:gemini-1.5-pro", true},
		{"gemini:gemini-1.5-flash", true},
		{"ollama:llama2", false},
		{"together:mixtral", false},
		{"groq:llama3", false},
		// Unknown providers get the conservative text-mode path.
		{"mystery:model", false},
		{"no-prefix", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, SupportsStructuredOutput(tt.model))
		})
	}
}
