package llm

import "strings"

// ExtractJSON pulls the JSON payload out of a model reply. A fenced code block wins;
// otherwise the span from the first opening bracket to the last matching closer is used.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if start := strings.Index(s, "```"); start != -1 {
		body := s[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}

	open := strings.IndexAny(s, "[{")
	if open == -1 {
		return s
	}
	closer := "]"
	if s[open] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(s, closer)
	if end < open {
		return s[open:]
	}
	return s[open : end+1]
}
