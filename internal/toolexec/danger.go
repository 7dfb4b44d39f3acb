package toolexec

import (
	"regexp"
	"strings"

	"mcphub/internal/config"
	"mcphub/internal/hub"
)

var defaultDangerousKeywords = []string{
	"delete", "remove", "drop", "truncate", "push", "write",
	"modify", "update", "alter", "exec", "execute", "format",
}

var (
	deletePattern  = regexp.MustCompile(`(?i)delete|remove|drop`)
	writePattern   = regexp.MustCompile(`(?i)write|create|push`)
	modifyPattern  = regexp.MustCompile(`(?i)modify|update|alter`)
	executePattern = regexp.MustCompile(`(?i)exec|execute|run`)
	formatPattern  = regexp.MustCompile(`(?i)format|clean|clear`)
)

// classifyOperation returns the fixed-priority operation type per §9's
// resolved open question: the first pattern that matches, in the order
// DELETE -> WRITE -> MODIFY -> EXECUTE -> FORMAT, else MODIFY.
func classifyOperation(toolName string) hub.OperationType {
	switch {
	case deletePattern.MatchString(toolName):
		return hub.OpDelete
	case writePattern.MatchString(toolName):
		return hub.OpWrite
	case modifyPattern.MatchString(toolName):
		return hub.OpModify
	case executePattern.MatchString(toolName):
		return hub.OpExecute
	case formatPattern.MatchString(toolName):
		return hub.OpFormat
	default:
		return hub.OpModify
	}
}

// classifyDanger implements §4.6.a: a descriptor is dangerous if its safety
// metadata says so, its name matches a dangerous keyword, or one of its
// required fields is configured as dangerous.
func classifyDanger(desc hub.ToolDescriptor, safety config.SafetyConfig) (dangerous bool, level hub.DangerLevel) {
	if desc.Safety != nil {
		if desc.Safety.IsDangerous {
			dangerous = true
		}
		if desc.Safety.DangerLevel != "" && desc.Safety.DangerLevel != hub.DangerNone {
			dangerous = true
		}
	}

	lowerName := strings.ToLower(desc.Name)
	keywords := append(append([]string{}, defaultDangerousKeywords...), safety.DangerousKeywords...)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowerName, strings.ToLower(kw)) {
			dangerous = true
			break
		}
	}

	if !dangerous && len(safety.DangerousFields) > 0 {
		dangerousSet := toSet(safety.DangerousFields)
		for _, field := range desc.InputSchema.Required {
			if dangerousSet[field] {
				dangerous = true
				break
			}
		}
	}

	if !dangerous {
		return false, hub.DangerNone
	}

	if desc.Safety != nil && desc.Safety.DangerLevel != "" {
		return true, desc.Safety.DangerLevel
	}
	switch {
	case deletePattern.MatchString(desc.Name):
		return true, hub.DangerHigh
	case modifyPattern.MatchString(desc.Name), executePattern.MatchString(desc.Name):
		return true, hub.DangerMedium
	default:
		return true, hub.DangerLow
	}
}

// requiresConfirmation implements §4.6.a's priority order.
func requiresConfirmation(desc hub.ToolDescriptor, safety config.SafetyConfig, dangerous bool, level hub.DangerLevel) bool {
	if desc.Safety != nil && desc.Safety.RequiresConfirmation {
		return true
	}
	for _, l := range safety.ConfirmationRequired.DangerLevels {
		if hub.DangerLevel(l) == level {
			return true
		}
	}
	for _, pattern := range safety.ConfirmationRequired.Patterns {
		if re, err := regexp.Compile(pattern); err == nil && re.MatchString(desc.Name) {
			return true
		}
	}
	for _, name := range safety.ConfirmationRequired.Tools {
		if name == desc.Name {
			return true
		}
	}
	return dangerous
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
