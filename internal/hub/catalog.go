package hub

import (
	"fmt"
	"sort"
	"sync"
)

// catalog maps serverName -> (toolName -> ToolDescriptor). Entries are
// immutable after publication; a refresh is a pointer swap of the inner map,
// grounded on the teacher's refreshToolCache/GetRawToolSchemas
// snapshot-then-swap pattern (internal/client/mcp_schemas.go).
type catalog struct {
	mu   sync.RWMutex
	byServer map[string]map[string]ToolDescriptor
}

func newCatalog() *catalog {
	return &catalog{byServer: make(map[string]map[string]ToolDescriptor)}
}

// publish replaces a server's tool set wholesale. Called by the supervisor
// whenever it reaches connected.
func (c *catalog) publish(serverName string, tools []ToolDescriptor) {
	m := make(map[string]ToolDescriptor, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	c.mu.Lock()
	c.byServer[serverName] = m
	c.mu.Unlock()
}

// clear removes a server's tools, e.g. when it disconnects.
func (c *catalog) clear(serverName string) {
	c.mu.Lock()
	delete(c.byServer, serverName)
	c.mu.Unlock()
}

// lookup resolves (serverName, toolName); ErrToolNotFound reports the
// available tool names for diagnostics, as required by §4.5.
func (c *catalog) lookup(serverName, toolName string) (ToolDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tools, ok := c.byServer[serverName]
	if !ok {
		return ToolDescriptor{}, fmt.Errorf("%w: server %q has no catalog", ErrToolNotFound, serverName)
	}
	desc, ok := tools[toolName]
	if !ok {
		available := make([]string, 0, len(tools))
		for name := range tools {
			available = append(available, name)
		}
		sort.Strings(available)
		return ToolDescriptor{}, fmt.Errorf("%w: %q not on server %q, available: %v", ErrToolNotFound, toolName, serverName, available)
	}
	return desc, nil
}

// list returns a defensive copy of one server's tool descriptors.
func (c *catalog) list(serverName string) []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tools := c.byServer[serverName]
	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// exists reports whether (serverName, toolName) resolves, used by the
// composition executor's registration-time referential-integrity check.
func (c *catalog) exists(serverName, toolName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tools, ok := c.byServer[serverName]
	if !ok {
		return false
	}
	_, ok = tools[toolName]
	return ok
}
