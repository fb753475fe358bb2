// Package assistant implements the natural-language model editor. The intelligence
// lives in an external language model; the only contract owned here is the prompt
// shape and the parsing of replies.
package assistant

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Reply is the structured payload expected back from the language model: either a
// set of changes to apply to the data model, or a request for clarification.
type Reply struct {
	Message          string          `json:"message"`
	Changes          json.RawMessage `json:"changes,omitempty"`
	RequiresMoreInfo bool            `json:"requiresMoreInfo,omitempty"`
	RequiredInfo     []string        `json:"requiredInfo,omitempty"`
}

var fencedJsonRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseReply extracts the first fenced json block, or a bare {...} block, from a
// free-text model reply. Unparsable replies never error: they degrade to a
// clarification request carrying the raw reply, so a confused model turns into a
// follow-up question instead of a failed request.
func ParseReply(raw string) Reply {
	candidate := ""

	if match := fencedJsonRe.FindStringSubmatch(raw); match != nil {
		candidate = match[1]
	} else {
		candidate = bareJsonBlock(raw)
	}

	if candidate != "" {
		var reply Reply
		if err := json.Unmarshal([]byte(candidate), &reply); err == nil {
			if reply.Message == "" {
				reply.Message = strings.TrimSpace(raw)
			}
			return reply
		}
	}

	return Reply{Message: raw, RequiresMoreInfo: true}
}

// bareJsonBlock returns the first balanced {...} block in the text, respecting
// string literals so braces inside values do not end the block early.
func bareJsonBlock(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}
