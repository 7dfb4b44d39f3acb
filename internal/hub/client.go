package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// methodNotFoundCode is the JSON-RPC 2.0 code for "method not found",
// handled throughout the hub as a soft absence rather than a hard failure.
const methodNotFoundCode = -32601

// client wraps one mcp.ClientSession with the typed method set the spec
// describes for C2: initialize is performed by mcp.Client.Connect itself
// (the SDK folds the initialize handshake into session establishment), so
// this type's job is tools/list, tools/call, resources/list and
// resources/templates/list, each translating SDK errors into the hub's
// taxonomy and enforcing the 5s list timeout.
type client struct {
	serverName string
	session    *mcp.ClientSession
}

// newClient dials transport and returns a client wrapping the resulting
// session. The SDK's Connect performs the initialize round-trip; callers
// that need the negotiated capabilities should follow up with
// discoverCapabilities.
func newClient(ctx context.Context, serverName string, transport mcp.Transport) (*client, error) {
	impl := &mcp.Implementation{Name: "mcphub", Version: "1.0.0"}
	mc := mcp.NewClient(impl, nil)
	session, err := mc.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("server %q: %w", serverName, err)
	}
	return &client{serverName: serverName, session: session}, nil
}

func (c *client) close() error {
	return c.session.Close()
}

// discoverCapabilities probes each optional method family once, recording a
// capability as unsupported (rather than failing the connection) when the
// backend replies with JSON-RPC -32601 method-not-found.
func (c *client) discoverCapabilities(ctx context.Context) (Capabilities, []ToolDescriptor, error) {
	var caps Capabilities
	var tools []ToolDescriptor

	listCtx, cancel := context.WithTimeout(ctx, ListTimeout)
	defer cancel()
	result, err := c.session.ListTools(listCtx, nil)
	switch {
	case err == nil:
		caps.Tools = true
		tools = make([]ToolDescriptor, 0, len(result.Tools))
		for _, t := range result.Tools {
			tools = append(tools, convertTool(c.serverName, t))
		}
	case isMethodNotFound(err):
		// server does not expose tools; not a connection failure.
	default:
		return caps, nil, fmt.Errorf("server %q: list tools: %w", c.serverName, err)
	}

	if ok, err := c.probeResources(ctx); err != nil {
		return caps, nil, err
	} else {
		caps.Resources = ok
	}
	if ok, err := c.probeResourceTemplates(ctx); err != nil {
		return caps, nil, err
	} else {
		caps.ResourceTemplates = ok
	}
	return caps, tools, nil
}

func (c *client) probeResources(ctx context.Context) (bool, error) {
	listCtx, cancel := context.WithTimeout(ctx, ListTimeout)
	defer cancel()
	_, err := c.session.ListResources(listCtx, nil)
	if err == nil {
		return true, nil
	}
	if isMethodNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("server %q: list resources: %w", c.serverName, err)
}

func (c *client) probeResourceTemplates(ctx context.Context) (bool, error) {
	listCtx, cancel := context.WithTimeout(ctx, ListTimeout)
	defer cancel()
	_, err := c.session.ListResourceTemplates(listCtx, nil)
	if err == nil {
		return true, nil
	}
	if isMethodNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("server %q: list resource templates: %w", c.serverName, err)
}

// listTools refreshes the tool set for an already-connected server. Used by
// the supervisor on (re)connect and by manual catalog refreshes.
func (c *client) listTools(ctx context.Context) ([]ToolDescriptor, error) {
	listCtx, cancel := context.WithTimeout(ctx, ListTimeout)
	defer cancel()
	result, err := c.session.ListTools(listCtx, nil)
	if err != nil {
		if isMethodNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("server %q: list tools: %w", c.serverName, err)
	}
	out := make([]ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, convertTool(c.serverName, t))
	}
	return out, nil
}

// callTool issues tools/call with no internal timeout — retry and backoff
// belong to the Tool Executor (§5), not this layer.
func (c *client) callTool(ctx context.Context, toolName string, args map[string]any) (*mcp.CallToolResult, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		if isMethodNotFound(err) {
			return nil, fmt.Errorf("server %q: %w: %s", c.serverName, ErrMethodNotFound, toolName)
		}
		return nil, err
	}
	return result, nil
}

// isMethodNotFound reports whether err is a JSON-RPC error with code -32601
// (method not found), the SDK's signal that a server simply doesn't
// implement an optional method family.
func isMethodNotFound(err error) bool {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == methodNotFoundCode
	}
	return false
}

// convertTool maps an SDK tool into the hub's own ToolDescriptor, defensively
// handling InputSchema arriving either as a map or as some other
// JSON-marshalable shape (mirrors the teacher's mcp_schemas.go fallback).
func convertTool(serverName string, t *mcp.Tool) ToolDescriptor {
	desc := ToolDescriptor{
		ServerName:  serverName,
		Name:        t.Name,
		Description: t.Description,
	}
	raw := extractRawSchema(t.InputSchema)
	desc.InputSchema = parseInputSchema(raw)
	return desc
}

func extractRawSchema(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil {
		return nil
	}
	return m
}

func parseInputSchema(raw map[string]any) InputSchema {
	schema := InputSchema{Properties: map[string]Property{}}
	if raw == nil {
		return schema
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		for name, v := range props {
			pm, _ := v.(map[string]any)
			p := Property{}
			if t, ok := pm["type"].(string); ok {
				p.Type = t
			}
			if d, ok := pm["description"].(string); ok {
				p.Description = d
			}
			if enum, ok := pm["enum"].([]any); ok {
				for _, e := range enum {
					if s, ok := e.(string); ok {
						p.Enum = append(p.Enum, s)
					}
				}
			}
			schema.Properties[name] = p
		}
	}
	if req, ok := raw["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
