// Package structured pulls a JSON object out of free-form model output.
//
// A model asked for JSON usually returns it, but sometimes wraps it in prose
// or a code fence. Extract tries a direct parse first and then exactly one
// fallback: the first brace-balanced {...} span in the text. Anything else is
// an ExtractionFailure.
package structured

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionFailure reports model output that could not be read as a JSON object.
type ExtractionFailure struct {
	Raw    string
	Reason string
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("could not extract JSON object from model output: %s", e.Reason)
}

// Result is either a parsed JSON object or a failure, never both.
type Result struct {
	JSON     json.RawMessage
	Failure  *ExtractionFailure
	Fallback bool // true when the object came from the brace-span scan
}

// OK reports whether extraction produced a JSON object.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Decode unmarshals the extracted object into v. A failed result returns its
// ExtractionFailure.
func (r Result) Decode(v interface{}) error {
	if r.Failure != nil {
		return r.Failure
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return &ExtractionFailure{Raw: string(r.JSON), Reason: "object does not match expected shape: " + err.Error()}
	}
	return nil
}

// Extract reads a JSON object out of raw.
func Extract(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Failure: &ExtractionFailure{Raw: raw, Reason: "empty response"}}
	}

	if isObject(trimmed) {
		return Result{JSON: json.RawMessage(trimmed)}
	}

	span, ok := firstBalancedObject(trimmed)
	if !ok {
		return Result{Failure: &ExtractionFailure{Raw: raw, Reason: "no balanced {...} span found"}}
	}
	if !isObject(span) {
		return Result{Failure: &ExtractionFailure{Raw: raw, Reason: "first {...} span is not valid JSON"}}
	}
	return Result{JSON: json.RawMessage(span), Fallback: true}
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// firstBalancedObject returns the first {...} span whose braces balance,
// ignoring braces inside JSON strings.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
