package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"wikirag/features/chat"
	"wikirag/internal/middleware"
	"wikirag/internal/retrieval"
)

type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]retrieval.SearchResult, error)
}

type Asker interface {
	Ask(ctx context.Context, message, model string) (*chat.Response, error)
}

type Handler struct {
	retriever Retriever
	asker     Asker
}

func NewHandler(r Retriever, a Asker) *Handler {
	return &Handler{retriever: r, asker: a}
}

// JSON-RPC Request types
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type SearchArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

type AskArgs struct {
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// JSON-RPC Response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

const maxSearchLimit = 50

var tools = []Tool{
	{
		Name: "wiki_search",
		Description: `Search the Vintage Story wiki knowledge base by meaning. Returns the most similar passages with their page title and URL.

USAGE EXAMPLES:
- wiki_search(query="how to make a clay oven")
- wiki_search(query="bronze alloy ratio", limit=3)`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]string{
					"type":        "string",
					"description": "The search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Max results to return (default from server settings).",
					"minimum":     1,
					"maximum":     maxSearchLimit,
				},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "wiki_ask",
		Description: `Answer a question about Vintage Story using retrieved wiki passages as context. The exchange is added to the server's conversation history.`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]string{
					"type":        "string",
					"description": "The question to answer",
				},
				"model": map[string]string{
					"type":        "string",
					"description": "Optional generation model override",
				},
			},
			"required": []string{"question"},
		},
	},
}

// processRequest processes the JSON-RPC request and returns a response.
// Returns nil if no response should be sent (e.g. for notifications).
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "wikirag-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		// Notifications must not generate a response
		return nil
	case "ping":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: tools}}
	case "tools/call":
		return h.callTool(ctx, req)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func (h *Handler) callTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
		return &resp
	}

	switch params.Name {
	case "wiki_search":
		return h.search(ctx, req.ID, params.Arguments)
	case "wiki_ask":
		return h.ask(ctx, req.ID, params.Arguments)
	}

	slog.WarnContext(ctx, "method not found", "method", params.Name)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
	return &resp
}

func (h *Handler) search(ctx context.Context, id interface{}, raw json.RawMessage) *JSONRPCResponse {
	var args SearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
		return &resp
	}
	if strings.TrimSpace(args.Query) == "" {
		resp := makeErrorResponse(id, ErrInvalidParams, "query is required")
		return &resp
	}

	limit := 0
	if args.Limit != nil {
		limit = min(max(*args.Limit, 1), maxSearchLimit)
	}

	results, err := h.retriever.Search(ctx, args.Query, limit)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		return toolError(id, err)
	}

	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("No results found.")
	}
	for i, res := range results {
		fmt.Fprintf(&b, "Result %d (Score: %.2f):\n", i+1, res.Score)
		if res.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", res.Title)
		}
		if res.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", res.URL)
		}
		fmt.Fprintf(&b, "Content:\n%s\n\n---\n", res.Content)
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", "wiki_search", "result_count", len(results))
	return toolText(id, b.String())
}

func (h *Handler) ask(ctx context.Context, id interface{}, raw json.RawMessage) *JSONRPCResponse {
	var args AskArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
		return &resp
	}

	answer, err := h.asker.Ask(ctx, args.Question, args.Model)
	if errors.Is(err, chat.ErrInvalidMessage) || errors.Is(err, chat.ErrInvalidModel) {
		resp := makeErrorResponse(id, ErrInvalidParams, err.Error())
		return &resp
	}
	if err != nil {
		slog.ErrorContext(ctx, "ask failed", "error", err)
		return toolError(id, err)
	}

	text := answer.Message.Content
	if len(answer.ContextUsed) > 0 {
		text += "\n\nSources:\n- " + strings.Join(answer.ContextUsed, "\n- ")
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", "wiki_ask", "context_count", len(answer.ContextUsed))
	return toolText(id, text)
}

func toolText(id interface{}, text string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  ToolResult{Content: []ToolContent{{Type: "text", Text: text}}},
	}
}

func toolError(id interface{}, err error) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		},
	}
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.InfoContext(ctx, "mcp request received", "method", r.Method, "path", r.URL.Path)

	if r.Method != http.MethodPost {
		h.writeHTTPError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use POST", middleware.GetCorrelationID(ctx))
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.writeError(w, req.ID, ErrInvalidRequest, "Invalid Request")
		return
	}

	resp := h.processRequest(ctx, req)
	if resp == nil {
		// Notification, just acknowledge
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	// JSON-RPC errors travel as 200 OK with an error object
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(makeErrorResponse(id, code, message)); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func (h *Handler) writeHTTPError(w http.ResponseWriter, status int, code string, message string, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": correlationID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
