// Package redact scrubs sensitive fields out of tool-call results before
// they reach a caller. Adapted from the teacher's internal/filter response
// filter chain (ResponseFilter/FilterChain), generalized from webhook
// payload filtering to tool-result redaction.
package redact

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Filter receives a tool name and its result, returning a (possibly
// unchanged) replacement. Implementations must not mutate the input.
type Filter interface {
	Filter(toolName string, result any) any
}

// Chain applies filters in sequence, output of one feeding the next.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

func (c *Chain) Filter(toolName string, result any) any {
	out := result
	for _, f := range c.filters {
		out = f.Filter(toolName, out)
	}
	return out
}

// FieldRedactor blanks out a fixed set of dotted field paths
// (gjson/sjson-compatible, e.g. "data.token" or "items.0.secret") from a
// result, wherever they appear. Paths that don't exist in a given result
// are no-ops. Non-JSON-marshalable results pass through unchanged.
type FieldRedactor struct {
	Fields []string
}

const redactedPlaceholder = "[redacted]"

func (r *FieldRedactor) Filter(_ string, result any) any {
	if len(r.Fields) == 0 || result == nil {
		return result
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return result
	}
	out := string(raw)
	for _, field := range r.Fields {
		if !gjson.Get(out, field).Exists() {
			continue
		}
		if next, err := sjson.Set(out, field, redactedPlaceholder); err == nil {
			out = next
		}
	}
	var decoded any
	if json.Unmarshal([]byte(out), &decoded) != nil {
		return result
	}
	return decoded
}
