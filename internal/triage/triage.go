// Package triage decodes the general model's "is the specialist needed"
// decision from free-form text.
package triage

import (
	"encoding/json"
	"strings"
)

// Decision is the outcome of Decode. Decoded is false when nothing usable
// could be extracted; Needed and Question are then zero.
type Decision struct {
	Decoded  bool
	Needed   bool
	Question string
}

// Undecodable is the decision used when the reply cannot be parsed.
var Undecodable = Decision{}

// Consult reports whether the specialist should be called: the model said
// so and gave a non-empty sub-question.
func (d Decision) Consult() bool {
	return d.Decoded && d.Needed && d.Question != ""
}

type wireDecision struct {
	Needed   json.RawMessage `json:"dhenu_needed"`
	Question json.RawMessage `json:"dhenu_question"`
}

// Decode extracts the span from the first '{' to the last '}' (or the whole
// trimmed reply when there are no braces) and parses it. Any parse failure
// yields Undecodable.
func Decode(reply string) Decision {
	candidate := strings.TrimSpace(reply)
	if candidate == "" {
		return Undecodable
	}
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return Undecodable
	}
	return Decision{
		Decoded:  true,
		Needed:   truthy(w.Needed),
		Question: stringField(w.Question),
	}
}

// truthy follows loose boolean semantics: false, null, 0, "" and a
// missing key are false; everything else is true.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
