package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/internal/store"
	"github.com/vines90/mcp-prompt-server/internal/toolhost"
)

const (
	jsonRPCVersion         = "2.0"
	defaultProtocolVersion = "2024-11-05"
)

// Version is reported in serverInfo and by the version command.
const Version = "0.3.0"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
)

// PromptCatalog exposes the current catalog generation.
type PromptCatalog interface {
	Snapshot() *catalog.Snapshot
}

// RequestLogSink receives summarized MCP request events.
type RequestLogSink interface {
	InsertMCPRequestLog(ctx context.Context, rec store.MCPRequestLog) error
}

// Server handles MCP JSON-RPC messages. One Server backs every transport;
// per-connection state lives in a session.
type Server struct {
	name    string
	tools   *toolhost.Registry
	prompts PromptCatalog
	logger  *log.Logger
	sink    RequestLogSink

	requests uint64
	errors   uint64
}

// NewServer creates an MCP server. sink may be nil.
func NewServer(name string, tools *toolhost.Registry, prompts PromptCatalog, logger *log.Logger, sink RequestLogSink) *Server {
	if strings.TrimSpace(name) == "" {
		name = "prompt-mcp"
	}
	return &Server{name: name, tools: tools, prompts: prompts, logger: logger, sink: sink}
}

// session tracks what one connected client has seen.
type session struct {
	initialized bool
	seenGen     uint64
}

// Serve starts MCP handling over the provided streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	br := bufio.NewReader(in)
	bw := bufio.NewWriter(out)
	defer bw.Flush()

	sess := &session{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, mode, err := readMessage(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp, shouldRespond := s.process(ctx, sess, payload)
		if !shouldRespond {
			continue
		}
		if note, ok := s.pendingNotification(sess); ok {
			if err := writeMessage(bw, note, mode); err != nil {
				return err
			}
		}
		if err := writeMessage(bw, resp, mode); err != nil {
			return err
		}
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// process decodes one payload, handles it and records the outcome.
func (s *Server) process(ctx context.Context, sess *session, payload []byte) (response, bool) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("invalid JSON-RPC request", "error", err)
		resp := errorResponse(nil, codeParseError, "parse error", err.Error())
		s.recordRequest(ctx, request{Method: "parse_error"}, resp, 0)
		return resp, true
	}

	started := time.Now()
	resp, shouldRespond := s.handle(ctx, sess, req)
	s.recordRequest(ctx, req, resp, time.Since(started))
	return resp, shouldRespond
}

// pendingNotification returns a tools/list_changed notification when the
// published tool set changed since the session last saw it.
func (s *Server) pendingNotification(sess *session) (notification, bool) {
	if !sess.initialized {
		return notification{}, false
	}
	gen := s.tools.Generation()
	if gen == sess.seenGen {
		return notification{}, false
	}
	sess.seenGen = gen
	return notification{JSONRPC: jsonRPCVersion, Method: "notifications/tools/list_changed"}, true
}

func (s *Server) handle(ctx context.Context, sess *session, req request) (response, bool) {
	atomic.AddUint64(&s.requests, 1)

	hasID := len(req.ID) > 0
	id := decodeID(req.ID)

	switch req.Method {
	case "notifications/initialized":
		sess.initialized = true
		return response{}, false
	case "initialize":
		var p struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		_ = json.Unmarshal(req.Params, &p)
		pv := p.ProtocolVersion
		if strings.TrimSpace(pv) == "" {
			pv = defaultProtocolVersion
		}
		sess.initialized = true
		sess.seenGen = s.tools.Generation()
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{
			"protocolVersion": pv,
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": true,
				},
				"prompts": map[string]any{
					"listChanged": false,
				},
			},
			"serverInfo": map[string]any{
				"name":    s.name,
				"version": Version,
			},
		}}, hasID
	case "ping":
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{}}, hasID
	case "tools/list":
		sess.seenGen = s.tools.Generation()
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{"tools": toolDefinitions(s.tools.Current())}}, hasID
	case "tools/call":
		res, err := s.handleToolCall(ctx, req.Params)
		if err != nil {
			atomic.AddUint64(&s.errors, 1)
			return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{
				"content": []map[string]any{{"type": "text", "text": err.Error()}},
				"isError": true,
			}}, hasID
		}
		if isErr, _ := res["isError"].(bool); isErr {
			atomic.AddUint64(&s.errors, 1)
		}
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: res}, hasID
	case "prompts/list":
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{"prompts": promptDefinitions(s.prompts.Snapshot())}}, hasID
	case "prompts/get":
		res, err := s.handlePromptGet(req.Params)
		if err != nil {
			atomic.AddUint64(&s.errors, 1)
			return errorResponse(id, codeInvalidParams, err.Error(), nil), hasID
		}
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: res}, hasID
	default:
		if !hasID {
			return response{}, false
		}
		return errorResponse(id, codeMethodNotFound, "method not found", req.Method), true
	}
}

func (s *Server) recordRequest(ctx context.Context, req request, resp response, duration time.Duration) {
	if s.sink == nil {
		return
	}
	rec := store.MCPRequestLog{
		Method:     strings.TrimSpace(req.Method),
		ToolName:   nameFromParams(req.Method, req.Params),
		Success:    responseSuccessful(resp),
		ErrorText:  responseErrorText(resp),
		DurationMS: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if rec.Method == "" {
		rec.Method = "unknown"
	}
	if err := s.sink.InsertMCPRequestLog(ctx, rec); err != nil {
		s.logger.Warn("failed to persist MCP request log", "error", err)
	}
}

// nameFromParams extracts the tool or prompt a request targets.
func nameFromParams(method string, params json.RawMessage) string {
	if (method != "tools/call" && method != "prompts/get") || len(params) == 0 {
		return ""
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return ""
	}
	return strings.TrimSpace(in.Name)
}

func responseSuccessful(resp response) bool {
	if resp.Error != nil {
		return false
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		return true
	}
	isError, ok := result["isError"].(bool)
	if !ok {
		return true
	}
	return !isError
}

func responseErrorText(resp response) string {
	if resp.Error != nil {
		return strings.TrimSpace(resp.Error.Message)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		return ""
	}
	isError, ok := result["isError"].(bool)
	if !ok || !isError {
		return ""
	}
	content, ok := result["content"].([]map[string]any)
	if !ok || len(content) == 0 {
		return "tool call failed"
	}
	text, _ := content[0]["text"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return "tool call failed"
	}
	return text
}

func errorResponse(id interface{}, code int, msg string, data interface{}) response {
	return response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error: &rpcError{
			Code:    code,
			Message: msg,
			Data:    data,
		},
	}
}

func decodeID(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// Stats returns server counters for dashboards and health checks.
func (s *Server) Stats() map[string]any {
	return map[string]any{
		"requests":       atomic.LoadUint64(&s.requests),
		"errors":         atomic.LoadUint64(&s.errors),
		"tools":          s.tools.Current().Len(),
		"toolGeneration": s.tools.Generation(),
		"ts":             time.Now().UTC(),
	}
}
