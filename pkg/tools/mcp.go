package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/deepresearch/pkg/config"
	"github.com/kadirpekel/deepresearch/pkg/credentials"
	"github.com/kadirpekel/deepresearch/pkg/httpclient"
)

const (
	mcpProtocolVersion = "2024-11-05"
	clientName         = "deepresearch"
	clientVersion      = "1.0.0"

	// JSON-RPC error code the server uses to demand user interaction
	// (typically an auth grant in a browser).
	codeInteractionRequired = -32003
)

// AuthenticationRequiredError surfaces an MCP interaction-required
// error with the server-provided message and URL.
type AuthenticationRequiredError struct {
	Message string
	URL     string
}

func (e *AuthenticationRequiredError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s", e.Message, e.URL)
	}
	return e.Message
}

// MCPSource loads tools from an MCP server into a Registry. HTTP
// servers are reached over JSON-RPC with OAuth token-exchange
// authentication; stdio servers run as subprocesses.
type MCPSource struct {
	cfg          *config.MCPConfig
	store        credentials.Store
	subjectToken string
	httpClient   *httpclient.Client
	requestID    atomic.Int64

	mu    sync.Mutex
	stdio *client.Client
}

type MCPOption func(*MCPSource)

// WithSubjectToken sets the upstream identity token exchanged for an
// MCP access token when the server requires auth.
func WithSubjectToken(token string) MCPOption {
	return func(s *MCPSource) {
		s.subjectToken = token
	}
}

func WithMCPHTTPClient(client *httpclient.Client) MCPOption {
	return func(s *MCPSource) {
		s.httpClient = client
	}
}

func NewMCPSource(cfg *config.MCPConfig, store credentials.Store, opts ...MCPOption) *MCPSource {
	s := &MCPSource{
		cfg:   cfg,
		store: store,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithMaxRetries(3),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadTools connects to the server, lists its tools, and registers each
// one as a callable. Only tools named in the config's tool list are
// exposed; an empty list exposes nothing and skips the connection
// entirely. Names already present in the registry are skipped with a
// warning rather than overriding built-ins.
func (s *MCPSource) LoadTools(ctx context.Context, reg *Registry) error {
	if len(s.cfg.Tools) == 0 {
		slog.Warn("MCP server configured without a tool list, exposing no tools",
			"url", s.cfg.URL, "command", s.cfg.Command)
		return nil
	}
	if s.cfg.Command != "" {
		return s.loadStdioTools(ctx, reg)
	}
	return s.loadHTTPTools(ctx, reg)
}

func (s *MCPSource) allowed(name string) bool {
	for _, allowed := range s.cfg.Tools {
		if allowed == name {
			return true
		}
	}
	return false
}

func (s *MCPSource) registerTool(reg *Registry, name, description string, schema map[string]interface{}, handler Handler) {
	if !s.allowed(name) {
		return
	}
	if reg.Has(name) {
		slog.Warn("skipping MCP tool with conflicting name", "tool", name)
		return
	}
	description = strings.TrimSpace(s.cfg.Prompt + " " + description)
	if err := reg.Register(&Tool{
		Name:        name,
		Description: description,
		Kind:        KindCallable,
		Parameters:  schema,
		Handler:     handler,
	}); err != nil {
		slog.Warn("failed to register MCP tool", "tool", name, "error", err)
	}
}

// ---- stdio transport (mcp-go) ----

func (s *MCPSource) loadStdioTools(ctx context.Context, reg *Registry) error {
	env := make([]string, 0, len(s.cfg.Env))
	for k, v := range s.cfg.Env {
		env = append(env, k+"="+v)
	}

	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, env, s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	initReq.Params.ProtocolVersion = mcpProtocolVersion
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to list MCP tools: %w", err)
	}

	s.mu.Lock()
	s.stdio = mcpClient
	s.mu.Unlock()

	for _, mcpTool := range listResp.Tools {
		name := mcpTool.Name
		s.registerTool(reg, name, mcpTool.Description, convertSchema(mcpTool.InputSchema),
			func(ctx context.Context, args map[string]interface{}) (string, error) {
				return s.callStdio(ctx, name, args)
			})
	}

	slog.Info("connected to MCP server (stdio)", "command", s.cfg.Command, "tools", len(listResp.Tools))
	return nil
}

func (s *MCPSource) callStdio(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	s.mu.Lock()
	mcpClient := s.stdio
	s.mu.Unlock()
	if mcpClient == nil {
		return "", fmt.Errorf("MCP client not connected")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("MCP call failed: %w", err)
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if resp.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

// Close shuts down the stdio subprocess, if any.
func (s *MCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdio != nil {
		err := s.stdio.Close()
		s.stdio = nil
		return err
	}
	return nil
}

func convertSchema(schema mcp.ToolInputSchema) map[string]interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ---- HTTP transport (JSON-RPC) ----

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type jsonRPCError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

func (s *MCPSource) loadHTTPTools(ctx context.Context, reg *Registry) error {
	if _, err := s.rpc(ctx, "initialize", map[string]interface{}{
		"protocolVersion": mcpProtocolVersion,
		"clientInfo":      map[string]interface{}{"name": clientName, "version": clientVersion},
		"capabilities":    map[string]interface{}{},
	}); err != nil {
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	result, err := s.rpc(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("failed to list MCP tools: %w", err)
	}

	var listed struct {
		Tools []struct {
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			InputSchema map[string]interface{} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(result, &listed); err != nil {
		return fmt.Errorf("failed to decode MCP tool list: %w", err)
	}

	for _, mcpTool := range listed.Tools {
		name := mcpTool.Name
		s.registerTool(reg, name, mcpTool.Description, mcpTool.InputSchema,
			func(ctx context.Context, args map[string]interface{}) (string, error) {
				return s.callHTTP(ctx, name, args)
			})
	}

	slog.Info("connected to MCP server (http)", "url", s.cfg.URL, "tools", len(listed.Tools))
	return nil
}

func (s *MCPSource) callHTTP(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	result, err := s.rpc(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode MCP tool result: %w", err)
	}

	var texts []string
	for _, content := range parsed.Content {
		if content.Type == "text" {
			texts = append(texts, content.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if parsed.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

func (s *MCPSource) rpc(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.cfg.URL, "/") + "/mcp"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	if s.cfg.AuthRequired {
		token, err := s.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode MCP response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcError(rpcResp.Error)
	}
	return rpcResp.Result, nil
}

// rpcError translates a JSON-RPC error, mapping interaction-required
// errors to AuthenticationRequiredError with the server's message and
// URL.
func rpcError(rpcErr *jsonRPCError) error {
	if rpcErr.Code == codeInteractionRequired {
		message := "Required interaction"
		if payload, ok := rpcErr.Data["message"].(map[string]interface{}); ok {
			if text, ok := payload["text"].(string); ok && text != "" {
				message = text
			}
		}
		authURL, _ := rpcErr.Data["url"].(string)
		return &AuthenticationRequiredError{Message: message, URL: authURL}
	}
	return fmt.Errorf("MCP error %d: %s", rpcErr.Code, rpcErr.Message)
}

// ---- OAuth token exchange ----

// accessToken returns a cached MCP access token or exchanges the
// subject token for a fresh one.
func (s *MCPSource) accessToken(ctx context.Context) (string, error) {
	if token, ok := s.store.Get(s.cfg.URL); ok {
		return token.AccessToken, nil
	}

	if s.subjectToken == "" {
		return "", fmt.Errorf("MCP server requires auth but no subject token is available")
	}

	base := strings.TrimRight(s.cfg.URL, "/")
	form := url.Values{
		"client_id":          {"mcp_default"},
		"subject_token":      {s.subjectToken},
		"grant_type":         {"urn:ietf:params:oauth:grant-type:token-exchange"},
		"resource":           {base + "/mcp"},
		"subject_token_type": {"urn:ietf:params:oauth:token-type:access_token"},
	}
	encoded := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/oauth/token",
		strings.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(encoded)), nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange failed: HTTP %d: %s", resp.StatusCode, detail)
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	token := credentials.Token{
		AccessToken: tokenData.AccessToken,
		ExpiresIn:   tokenData.ExpiresIn,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Put(s.cfg.URL, token); err != nil {
		slog.Warn("failed to cache MCP token", "error", err)
	}
	return token.AccessToken, nil
}
