// Package chat relays visitor messages to the CRM assistant, persists
// transcripts, and turns instruction markers embedded in assistant replies
// into automation runs and locale switches.
package chat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/intellagent/scheduling-service/internal/automation"
)

// automationMarker is the token the assistant embeds before a JSON booking
// instruction.
const automationMarker = "MEETING_AUTOMATION"

var (
	fencedAutomationRe   = regexp.MustCompile("(?s)```(?:json)?\\s*" + automationMarker + "\\s*(\\{.*?\\})\\s*```")
	fallbackAutomationRe = regexp.MustCompile(`(?s)` + automationMarker + `\s*(\{.*\})`)
	localeChangeRe       = regexp.MustCompile(`LOCALE_CHANGE:(\w+)`)
	blankRunRe           = regexp.MustCompile(`\n{3,}`)
)

// ExtractAutomation scans an assistant reply for an embedded booking
// instruction. The marker and its JSON are always removed from the returned
// display text, even when the JSON does not parse; a reply must never leak
// raw instruction wire format to the visitor. A non-nil error therefore
// accompanies cleaned text, not original text.
//
// Three strategies run in order: a fenced code block, brace counting from the
// marker, and a greedy regex as the last resort for replies where the braces
// are unbalanced.
func ExtractAutomation(text string) (cleaned string, payload *automation.Payload, err error) {
	if !strings.Contains(text, automationMarker) {
		return text, nil, nil
	}

	if m := fencedAutomationRe.FindStringSubmatchIndex(text); m != nil {
		raw := text[m[2]:m[3]]
		cleaned = tidy(text[:m[0]] + text[m[1]:])
		payload, err = parsePayload(raw)
		return cleaned, payload, err
	}

	if raw, start, end, ok := braceCountedPayload(text); ok {
		cleaned = tidy(text[:start] + text[end:])
		payload, err = parsePayload(raw)
		return cleaned, payload, err
	}

	if m := fallbackAutomationRe.FindStringSubmatchIndex(text); m != nil {
		raw := text[m[2]:m[3]]
		cleaned = tidy(text[:m[0]] + text[m[1]:])
		payload, err = parsePayload(raw)
		return cleaned, payload, err
	}

	// Marker with no recoverable JSON: strip the bare token.
	cleaned = tidy(strings.Replace(text, automationMarker, "", 1))
	return cleaned, nil, fmt.Errorf("chat: %s marker without payload", automationMarker)
}

// braceCountedPayload finds the JSON object following the marker by counting
// braces, skipping over string literals so braces inside values do not
// unbalance the count. It returns the raw JSON plus the span to strip, which
// starts at the marker itself.
func braceCountedPayload(text string) (raw string, start, end int, ok bool) {
	markerIdx := strings.Index(text, automationMarker)
	if markerIdx < 0 {
		return "", 0, 0, false
	}

	openIdx := strings.IndexByte(text[markerIdx:], '{')
	if openIdx < 0 {
		return "", 0, 0, false
	}
	openIdx += markerIdx

	depth := 0
	inString := false
	escaped := false
	for i := openIdx; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[openIdx : i+1], markerIdx, i + 1, true
			}
		}
	}
	return "", 0, 0, false
}

func parsePayload(raw string) (*automation.Payload, error) {
	var p automation.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("chat: parse %s payload: %w", automationMarker, err)
	}
	return &p, nil
}

// ExtractLocaleChange pulls a LOCALE_CHANGE:<locale> directive out of an
// assistant reply, returning the display text with the directive removed and
// the requested locale, or "" when none is present.
func ExtractLocaleChange(text string) (cleaned, locale string) {
	m := localeChangeRe.FindStringSubmatchIndex(text)
	if m == nil {
		return text, ""
	}
	locale = text[m[2]:m[3]]
	cleaned = tidy(text[:m[0]] + text[m[1]:])
	return cleaned, locale
}

// tidy collapses the whitespace scar left by a stripped marker.
func tidy(s string) string {
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
