package toolexec

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"mcphub/internal/hub"
)

func toJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// validateAndEnrich implements §4.6.c: for each required field, keep a
// caller-supplied value, else inject a default from the server context
// (tool-scoped default first, then server-wide default), else report it
// missing. args is mutated in place.
func (e *Executor) validateAndEnrich(desc hub.ToolDescriptor, serverCtx *hub.ServerContext, args map[string]any) []string {
	var missing []string
	for _, field := range desc.InputSchema.Required {
		if _, ok := args[field]; ok {
			continue
		}
		if v, ok := lookupDefault(serverCtx, desc.Name, field); ok {
			args[field] = v
			continue
		}
		missing = append(missing, field)
	}
	return missing
}

// lookupDefault reads a dotted path out of the server context's free-form
// config map: config.tools.<toolName>.<field>, falling back to
// config.<field>. gjson gives us dotted-path reads over an
// any-shaped map without a bespoke walker.
func lookupDefault(serverCtx *hub.ServerContext, toolName, field string) (any, bool) {
	cfg := serverCtx.ExportConfig()
	if cfg == nil {
		return nil, false
	}
	raw, err := toJSON(cfg)
	if err != nil {
		return nil, false
	}

	toolPath := fmt.Sprintf("tools.%s.%s", gjsonEscape(toolName), gjsonEscape(field))
	if result := gjson.GetBytes(raw, toolPath); result.Exists() {
		return result.Value(), true
	}
	if result := gjson.GetBytes(raw, gjsonEscape(field)); result.Exists() {
		return result.Value(), true
	}
	return nil, false
}

// gjsonEscape escapes path separators gjson treats specially so field/tool
// names containing dots don't get misparsed as nested paths.
func gjsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '*', '?':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
