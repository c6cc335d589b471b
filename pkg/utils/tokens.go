// Package utils provides shared helpers for the research engine.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

// TokenCounter counts tokens for a model using tiktoken encodings.
// Non-OpenAI models are approximated with cl100k_base, which is close
// enough for sizing transcripts against context windows.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

var (
	// Encodings are expensive to build; cache them per model.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for a "provider:model" identifier.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	// Strip the provider prefix for tiktoken's model lookup.
	bare := model
	if idx := strings.Index(model, ":"); idx > 0 {
		bare = model[idx+1:]
	}

	encoding, err := tiktoken.EncodingForModel(bare)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return len(tc.encoding.Encode(text, nil, nil))
}

// TruncateText cuts text at a token boundary so it fits the budget.
// Text already within the budget is returned unchanged.
func (tc *TokenCounter) TruncateText(text string, maxTokens int) string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if maxTokens <= 0 {
		return ""
	}
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return tc.encoding.Decode(tokens[:maxTokens])
}

// CountMessages counts tokens in a transcript, including per-message
// role overhead and reply priming.
func (tc *TokenCounter) CountMessages(messages []llms.Message) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	tokensPerMessage := 3 // <|start|>role|message<|end|>

	totalTokens := 0
	for _, msg := range messages {
		totalTokens += tokensPerMessage
		totalTokens += len(tc.encoding.Encode(string(msg.Role), nil, nil))
		totalTokens += len(tc.encoding.Encode(msg.Content, nil, nil))
	}

	// Every reply is primed with <|start|>assistant<|message|>
	totalTokens += 3

	return totalTokens
}

// FitWithinLimit returns the suffix of a transcript that fits the token
// budget, keeping the most recent messages.
func (tc *TokenCounter) FitWithinLimit(messages []llms.Message, maxTokens int) []llms.Message {
	if len(messages) == 0 {
		return messages
	}

	fitted := []llms.Message{}
	currentTokens := 3 // reply priming

	for i := len(messages) - 1; i >= 0; i-- {
		msgTokens := tc.CountMessages([]llms.Message{messages[i]})
		if currentTokens+msgTokens > maxTokens {
			break
		}
		fitted = append([]llms.Message{messages[i]}, fitted...)
		currentTokens += msgTokens
	}

	return fitted
}

// Model returns the model this counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}
