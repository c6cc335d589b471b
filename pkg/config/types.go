package config

import (
	"fmt"
)

// SearchAPI selects the web search backend used by researcher agents.
type SearchAPI string

const (
	SearchAPITavily          SearchAPI = "tavily"
	SearchAPISearxng         SearchAPI = "searxng"
	SearchAPIAnthropicNative SearchAPI = "anthropic"
	SearchAPIOpenAINative    SearchAPI = "openai"
	SearchAPINone            SearchAPI = "none"
)

// MCPConfig describes an optional MCP server whose tools are exposed to
// researcher agents alongside the built-in ones.
type MCPConfig struct {
	URL          string   `yaml:"url" mapstructure:"url"`
	Tools        []string `yaml:"tools" mapstructure:"tools"`
	AuthRequired bool     `yaml:"auth_required" mapstructure:"auth_required"`
	Prompt       string   `yaml:"prompt" mapstructure:"prompt"`

	// Stdio transport: when Command is set the server runs as a
	// subprocess instead of over HTTP.
	Command string            `yaml:"command" mapstructure:"command"`
	Args    []string          `yaml:"args" mapstructure:"args"`
	Env     map[string]string `yaml:"env" mapstructure:"env"`
}

// Config is the per-run runtime configuration. It is immutable once a
// research run starts; every component receives the values it needs at
// construction time.
type Config struct {
	// Model identifiers, "provider:model" form (e.g. "openai:gpt-4.1").
	ResearchModel               string `yaml:"research_model" mapstructure:"research_model"`
	ResearchModelMaxTokens      int    `yaml:"research_model_max_tokens" mapstructure:"research_model_max_tokens"`
	SummarizationModel          string `yaml:"summarization_model" mapstructure:"summarization_model"`
	SummarizationModelMaxTokens int    `yaml:"summarization_model_max_tokens" mapstructure:"summarization_model_max_tokens"`
	CompressionModel            string `yaml:"compression_model" mapstructure:"compression_model"`
	CompressionModelMaxTokens   int    `yaml:"compression_model_max_tokens" mapstructure:"compression_model_max_tokens"`
	FinalReportModel            string `yaml:"final_report_model" mapstructure:"final_report_model"`
	FinalReportModelMaxTokens   int    `yaml:"final_report_model_max_tokens" mapstructure:"final_report_model_max_tokens"`

	// Orchestration budgets.
	AllowClarification         bool `yaml:"allow_clarification" mapstructure:"allow_clarification"`
	MaxConcurrentResearchUnits int  `yaml:"max_concurrent_research_units" mapstructure:"max_concurrent_research_units"`
	MaxResearcherIterations    int  `yaml:"max_researcher_iterations" mapstructure:"max_researcher_iterations"`
	MaxPlanningRounds          int  `yaml:"max_planning_rounds" mapstructure:"max_planning_rounds"`
	MaxReactToolCalls          int  `yaml:"max_react_tool_calls" mapstructure:"max_react_tool_calls"`
	MaxStructuredOutputRetries int  `yaml:"max_structured_output_retries" mapstructure:"max_structured_output_retries"`

	// Search.
	SearchAPI        SearchAPI `yaml:"search_api" mapstructure:"search_api"`
	MaxSearchResults int       `yaml:"max_search_results" mapstructure:"max_search_results"`
	MaxContentLength int       `yaml:"max_content_length" mapstructure:"max_content_length"`
	SearxngBaseURL   string    `yaml:"searxng_base_url" mapstructure:"searxng_base_url"`

	// Optional MCP server.
	MCP *MCPConfig `yaml:"mcp" mapstructure:"mcp"`

	// API keys used when GET_API_KEYS_FROM_CONFIG=true; keyed by the
	// conventional env var name (OPENAI_API_KEY, TAVILY_API_KEY, ...).
	APIKeys map[string]string `yaml:"apiKeys" mapstructure:"apiKeys"`

	// Logging.
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`
}

// SetDefaults fills in zero-valued fields with production defaults.
func (c *Config) SetDefaults() {
	if c.ResearchModel == "" {
		c.ResearchModel = "openai:gpt-4.1"
	}
	if c.ResearchModelMaxTokens == 0 {
		c.ResearchModelMaxTokens = 10000
	}
	if c.SummarizationModel == "" {
		c.SummarizationModel = "openai:gpt-4.1-mini"
	}
	if c.SummarizationModelMaxTokens == 0 {
		c.SummarizationModelMaxTokens = 8192
	}
	if c.CompressionModel == "" {
		c.CompressionModel = "openai:gpt-4.1"
	}
	if c.CompressionModelMaxTokens == 0 {
		c.CompressionModelMaxTokens = 10000
	}
	if c.FinalReportModel == "" {
		c.FinalReportModel = "openai:gpt-4.1"
	}
	if c.FinalReportModelMaxTokens == 0 {
		c.FinalReportModelMaxTokens = 10000
	}
	if c.MaxConcurrentResearchUnits == 0 {
		c.MaxConcurrentResearchUnits = 5
	}
	if c.MaxResearcherIterations == 0 {
		c.MaxResearcherIterations = 6
	}
	if c.MaxPlanningRounds == 0 {
		c.MaxPlanningRounds = 3
	}
	if c.MaxReactToolCalls == 0 {
		c.MaxReactToolCalls = 10
	}
	if c.MaxStructuredOutputRetries == 0 {
		c.MaxStructuredOutputRetries = 3
	}
	if c.SearchAPI == "" {
		c.SearchAPI = SearchAPITavily
	}
	if c.MaxSearchResults == 0 {
		c.MaxSearchResults = 5
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = 50000
	}
	if c.SearxngBaseURL == "" {
		c.SearxngBaseURL = "http://localhost:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
}

// Validate checks structural invariants. Budgets must be positive; the
// search API must be a known value.
func (c *Config) Validate() error {
	if c.MaxConcurrentResearchUnits < 1 {
		return fmt.Errorf("max_concurrent_research_units must be >= 1, got %d", c.MaxConcurrentResearchUnits)
	}
	if c.MaxResearcherIterations < 1 {
		return fmt.Errorf("max_researcher_iterations must be >= 1, got %d", c.MaxResearcherIterations)
	}
	if c.MaxPlanningRounds < 1 {
		return fmt.Errorf("max_planning_rounds must be >= 1, got %d", c.MaxPlanningRounds)
	}
	if c.MaxReactToolCalls < 1 {
		return fmt.Errorf("max_react_tool_calls must be >= 1, got %d", c.MaxReactToolCalls)
	}
	if c.MaxStructuredOutputRetries < 1 {
		return fmt.Errorf("max_structured_output_retries must be >= 1, got %d", c.MaxStructuredOutputRetries)
	}
	switch c.SearchAPI {
	case SearchAPITavily, SearchAPISearxng, SearchAPIAnthropicNative, SearchAPIOpenAINative, SearchAPINone:
	default:
		return fmt.Errorf("unknown search_api: %q", c.SearchAPI)
	}
	if c.MCP != nil && c.MCP.URL == "" && c.MCP.Command == "" {
		return fmt.Errorf("mcp.url or mcp.command is required when mcp is configured")
	}
	return nil
}
