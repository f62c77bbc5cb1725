package policy

import (
	"regexp"
	"strings"
)

// ToolDecision is the screening verdict for a single client tool invocation
// requested by the remote model.
type ToolDecision struct {
	Blocked bool
	Reason  string
}

var blockedToolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(exfiltrate|steal|dump credentials|leak secrets?)\b`),
	regexp.MustCompile(`(?i)\b(print|show|reveal|read)\b.*\b(api[_ -]?key|token|password|secret|id_rsa|\.env)\b`),
	regexp.MustCompile(`(?i)\brm\s+-rf\s+/`),
}

// ScreenToolCall inspects the string parameters the model attached to a tool
// invocation. The model drives these calls, so text that asks the tool layer
// to surface credentials or run destructive shell fragments is refused before
// any handler sees it.
func ScreenToolCall(toolName string, params map[string]any) ToolDecision {
	for _, v := range params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		in := strings.ToLower(strings.TrimSpace(s))
		if in == "" {
			continue
		}
		for _, re := range blockedToolPatterns {
			if re.MatchString(in) {
				return ToolDecision{
					Blocked: true,
					Reason:  "The " + toolName + " request was refused.",
				}
			}
		}
	}
	return ToolDecision{}
}
