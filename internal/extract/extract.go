// extract.go - Recovers a JSON value from free-text model output.
//
// The model is instructed to answer with JSON but is not guaranteed to answer
// with *only* JSON: it may wrap the payload in a markdown code fence or add
// commentary around it. Callers must treat a false result as "no usable data"
// and degrade gracefully; this package never panics and never returns an error.

package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fenceRe matches a fenced code block, optionally tagged "json".
var fenceRe = regexp.MustCompile("(?s)```(?:[Jj][Ss][Oo][Nn])?\\s*(.*?)```")

// stringRe matches JSON string literals so escaping can be repaired in place.
var stringRe = regexp.MustCompile(`"([^"]*(?:\\.[^"]*)*)"`)

// Extract recovers a well-formed JSON value from raw model output.
// Order of preference is pinned by tests and must not change:
//  1. interior of a fenced code block, parsed directly;
//  2. the substring between the first '{' or '[' and the last '}' or ']'.
//
// A candidate that does not parse (even after escape repair) yields (nil, false).
func Extract(raw string) (json.RawMessage, bool) {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		if v, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return v, true
		}
		// Fenced but unparsable: fall through to the bracket scan over the
		// whole text, the fence may have split the payload.
	}

	candidate, ok := bracketScan(raw)
	if !ok {
		return nil, false
	}
	return tryParse(candidate)
}

// DecodeInto extracts JSON from raw and unmarshals it into v.
func DecodeInto(raw string, v any) bool {
	payload, ok := Extract(raw)
	if !ok {
		return false
	}
	return json.Unmarshal(payload, v) == nil
}

// bracketScan locates the widest plausible JSON span: from the first opening
// brace or bracket (whichever occurs first) to the last closing one (whichever
// occurs last). When the true root is nested inside unrelated braces the span
// is a superset that fails to parse; that is accepted and surfaces as false.
func bracketScan(s string) (string, bool) {
	start := -1
	for _, c := range []string{"{", "["} {
		if i := strings.Index(s, c); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	end := -1
	for _, c := range []string{"}", "]"} {
		if i := strings.LastIndex(s, c); i > end {
			end = i
		}
	}
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// tryParse validates candidate as JSON, repairing escaping once before giving up.
func tryParse(candidate string) (json.RawMessage, bool) {
	if candidate == "" {
		return nil, false
	}
	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), true
	}
	repaired := fixEscaping(candidate)
	if json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired), true
	}
	return nil, false
}

// fixEscaping escapes literal control characters that Gemini sometimes emits
// inside JSON string values (raw newlines instead of \n), which Go's parser
// rejects.
func fixEscaping(jsonStr string) string {
	return stringRe.ReplaceAllStringFunc(jsonStr, func(match string) string {
		if len(match) < 2 {
			return match
		}
		content := match[1 : len(match)-1]

		content = strings.ReplaceAll(content, "\\ ", "\\\\ ")
		content = strings.ReplaceAll(content, "\n", "\\n")
		content = strings.ReplaceAll(content, "\r", "\\r")
		content = strings.ReplaceAll(content, "\t", "\\t")

		var builder strings.Builder
		for _, ch := range content {
			if ch < 0x20 {
				builder.WriteString(fmt.Sprintf("\\u%04x", ch))
			} else {
				builder.WriteRune(ch)
			}
		}
		return `"` + builder.String() + `"`
	})
}
