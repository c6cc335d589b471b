package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/deepresearch/pkg/config"
	"github.com/kadirpekel/deepresearch/pkg/credentials"
)

// mcpTestServer speaks just enough JSON-RPC for the HTTP transport.
func mcpTestServer(t *testing.T, handle func(method string, params json.RawMessage) (interface{}, *jsonRPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Method string          `json:"method"`
			ID     int64           `json:"id"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func basicMCPHandler(method string, params json.RawMessage) (interface{}, *jsonRPCError) {
	switch method {
	case "initialize":
		return map[string]interface{}{"protocolVersion": mcpProtocolVersion}, nil
	case "tools/list":
		return map[string]interface{}{
			"tools": []map[string]interface{}{
				{
					"name":        "fetch_page",
					"description": "Fetch a page",
					"inputSchema": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"url": map[string]interface{}{"type": "string"},
						},
					},
				},
				{
					"name":        "secret_tool",
					"description": "Should be filtered out",
				},
			},
		}, nil
	case "tools/call":
		var call struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(params, &call)
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "page content for " + call.Name},
			},
		}, nil
	}
	return nil, &jsonRPCError{Code: -32601, Message: "method not found"}
}

func TestLoadHTTPToolsRegistersAndCalls(t *testing.T) {
	server := mcpTestServer(t, basicMCPHandler)
	defer server.Close()

	cfg := &config.MCPConfig{
		URL:    server.URL,
		Tools:  []string{"fetch_page"},
		Prompt: "Use for documentation lookups.",
	}
	source := NewMCPSource(cfg, credentials.NewMemoryStore())

	reg := NewRegistry()
	require.NoError(t, source.LoadTools(context.Background(), reg))

	// Filtered tool is not registered.
	assert.False(t, reg.Has("secret_tool"))

	tool, ok := reg.Get("fetch_page")
	require.True(t, ok)
	assert.Contains(t, tool.Description, "Use for documentation lookups.")
	assert.Contains(t, tool.Description, "Fetch a page")

	out, err := tool.Handler(context.Background(), map[string]interface{}{"url": "https://x"})
	require.NoError(t, err)
	assert.Equal(t, "page content for fetch_page", out)
}

func TestLoadHTTPToolsSkipsConflictingNames(t *testing.T) {
	server := mcpTestServer(t, func(method string, params json.RawMessage) (interface{}, *jsonRPCError) {
		if method == "tools/list" {
			return map[string]interface{}{
				"tools": []map[string]interface{}{
					{"name": ThinkToolName, "description": "imposter"},
				},
			}, nil
		}
		return basicMCPHandler(method, params)
	})
	defer server.Close()

	reg := NewRegistry()
	require.NoError(t, reg.Register(NewThinkTool()))

	source := NewMCPSource(
		&config.MCPConfig{URL: server.URL, Tools: []string{ThinkToolName}},
		credentials.NewMemoryStore())
	require.NoError(t, source.LoadTools(context.Background(), reg))

	// The built-in is not overridden.
	tool, ok := reg.Get(ThinkToolName)
	require.True(t, ok)
	assert.NotContains(t, tool.Description, "imposter")
}

func TestHTTPToolCallError(t *testing.T) {
	server := mcpTestServer(t, func(method string, params json.RawMessage) (interface{}, *jsonRPCError) {
		if method == "tools/call" {
			return map[string]interface{}{
				"isError": true,
				"content": []map[string]interface{}{
					{"type": "text", "text": "upstream failure"},
				},
			}, nil
		}
		return basicMCPHandler(method, params)
	})
	defer server.Close()

	source := NewMCPSource(
		&config.MCPConfig{URL: server.URL, Tools: []string{"fetch_page"}},
		credentials.NewMemoryStore())
	reg := NewRegistry()
	require.NoError(t, source.LoadTools(context.Background(), reg))

	tool, ok := reg.Get("fetch_page")
	require.True(t, ok)
	_, err := tool.Handler(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream failure")
}

func TestAuthenticationRequiredError(t *testing.T) {
	server := mcpTestServer(t, func(method string, params json.RawMessage) (interface{}, *jsonRPCError) {
		return nil, &jsonRPCError{
			Code:    codeInteractionRequired,
			Message: "interaction required",
			Data: map[string]interface{}{
				"message": map[string]interface{}{"text": "Please grant access"},
				"url":     "https://auth.example/grant",
			},
		}
	})
	defer server.Close()

	source := NewMCPSource(
		&config.MCPConfig{URL: server.URL, Tools: []string{"fetch_page"}},
		credentials.NewMemoryStore())
	err := source.LoadTools(context.Background(), NewRegistry())
	require.Error(t, err)

	var authErr *AuthenticationRequiredError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Please grant access", authErr.Message)
	assert.Equal(t, "https://auth.example/grant", authErr.URL)
}

func TestOAuthTokenExchange(t *testing.T) {
	exchanges := 0
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "mcp_default", r.Form.Get("client_id"))
		assert.Equal(t, "subject-123", r.Form.Get("subject_token"))
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:token-exchange", r.Form.Get("grant_type"))
		assert.Equal(t, server.URL+"/mcp", r.Form.Get("resource"))
		assert.Equal(t, "urn:ietf:params:oauth:token-type:access_token", r.Form.Get("subject_token_type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "granted-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer granted-token", r.Header.Get("Authorization"))

		var req struct {
			Method string `json:"method"`
			ID     int64  `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := basicMCPHandler(req.Method, nil)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	store := credentials.NewMemoryStore()
	source := NewMCPSource(
		&config.MCPConfig{URL: server.URL, AuthRequired: true, Tools: []string{"fetch_page"}},
		store,
		WithSubjectToken("subject-123"))

	require.NoError(t, source.LoadTools(context.Background(), NewRegistry()))

	// initialize + tools/list both authenticated, but the token is
	// exchanged once and then served from the cache.
	assert.Equal(t, 1, exchanges)
	token, ok := store.Get(server.URL)
	require.True(t, ok)
	assert.Equal(t, "granted-token", token.AccessToken)
}

func TestOAuthExchangeRequiresSubjectToken(t *testing.T) {
	source := NewMCPSource(
		&config.MCPConfig{URL: "http://localhost:1", AuthRequired: true, Tools: []string{"fetch_page"}},
		credentials.NewMemoryStore())

	err := source.LoadTools(context.Background(), NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subject token")
}

func TestLoadToolsEmptyListExposesNothing(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	source := NewMCPSource(&config.MCPConfig{URL: server.URL}, credentials.NewMemoryStore())
	reg := NewRegistry()
	require.NoError(t, source.LoadTools(context.Background(), reg))

	// No tool list means no tools and no server contact.
	assert.Empty(t, reg.Names())
	assert.Zero(t, requests)
}
