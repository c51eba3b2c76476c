// Package guardrails screens farmer messages before any provider is called.
// It is coarse and pattern based; it is not a moderation system.
//
// Checks, in evaluation order:
//   - max_length: character limit
//   - markup: strips script/style blocks, inline handlers and tags
//   - suspicious_pattern: SQL and script-injection fragments
//   - special_chars: too many bracket/quote characters
//   - repetition: one character repeated many times in a row
//   - prompt_injection: heuristic instruction-override phrases
package guardrails

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind names one check.
type Kind string

const (
	KindEmpty             Kind = "empty"
	KindMaxLength         Kind = "max_length"
	KindMarkup            Kind = "markup"
	KindSuspiciousPattern Kind = "suspicious_pattern"
	KindSpecialChars      Kind = "special_chars"
	KindRepetition        Kind = "repetition"
	KindPromptInjection   Kind = "prompt_injection"
)

// Defaults.
const (
	DefaultMaxLength        = 2000
	DefaultSpecialCharRatio = 0.30
	// DefaultRepeatRun is the shortest run of one character that is
	// rejected.
	DefaultRepeatRun = 11
)

// Result is the outcome of one check.
type Result struct {
	Passed  bool   `json:"passed"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
}

// Evaluation aggregates all check results for one message.
type Evaluation struct {
	Passed    bool     `json:"passed"`
	Results   []Result `json:"results"`
	Sanitized string   `json:"-"`
}

// Failures returns the messages of all failed checks.
func (e *Evaluation) Failures() []string {
	var out []string
	for _, r := range e.Results {
		if !r.Passed {
			out = append(out, r.Message)
		}
	}
	return out
}

// ValidationError is returned when a message is rejected. Reason is a
// short caller-facing summary; Details lists each failed check.
type ValidationError struct {
	Reason  string
	Kind    Kind
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Details, "; "))
}

// ── Screener ────────────────────────────────────────────────

// Screener holds the thresholds for input screening. The zero value is not
// usable; call New.
type Screener struct {
	MaxLength        int
	SpecialCharRatio float64
	RepeatRun        int
	// HighSensitivity enables the extra prompt-injection patterns.
	HighSensitivity bool
}

// New returns a Screener with the production thresholds.
func New() *Screener {
	return &Screener{
		MaxLength:        DefaultMaxLength,
		SpecialCharRatio: DefaultSpecialCharRatio,
		RepeatRun:        DefaultRepeatRun,
	}
}

// Evaluate runs every check and returns the full evaluation. Length and
// markup failures stop evaluation early since later checks are
// meaningless for such input.
func (s *Screener) Evaluate(text string) *Evaluation {
	eval := &Evaluation{Passed: true, Results: make([]Result, 0, 6)}
	add := func(r Result) {
		eval.Results = append(eval.Results, r)
		if !r.Passed {
			eval.Passed = false
		}
	}

	if strings.TrimSpace(text) == "" {
		add(Result{Kind: KindEmpty, Message: "Message is empty"})
		return eval
	}

	add(s.evalMaxLength(text))
	if !eval.Passed {
		return eval
	}

	sanitized := Sanitize(text)
	if sanitized == "" {
		add(Result{Kind: KindMarkup, Message: "Invalid message content"})
		return eval
	}
	add(Result{Passed: true, Kind: KindMarkup})
	eval.Sanitized = sanitized

	add(evalSuspicious(text))
	add(s.evalSpecialChars(text))
	add(s.evalRepetition(text))
	add(s.evalPromptInjection(text))
	return eval
}

// Screen validates text and returns its sanitized form, or a
// *ValidationError naming the first failing check.
func (s *Screener) Screen(text string) (string, error) {
	eval := s.Evaluate(text)
	if eval.Passed {
		return eval.Sanitized, nil
	}
	var first Result
	for _, r := range eval.Results {
		if !r.Passed {
			first = r
			break
		}
	}
	reason := "Invalid message"
	switch first.Kind {
	case KindEmpty:
		reason = "Empty message"
	case KindSuspiciousPattern, KindSpecialChars, KindRepetition, KindPromptInjection:
		reason = "Message contains suspicious patterns"
	}
	return "", &ValidationError{Reason: reason, Kind: first.Kind, Details: eval.Failures()}
}

// ── Max Length ──────────────────────────────────────────────

func (s *Screener) evalMaxLength(text string) Result {
	if s.MaxLength > 0 && utf8.RuneCountInString(text) > s.MaxLength {
		return Result{
			Kind:    KindMaxLength,
			Message: fmt.Sprintf("Message is too long (max %d characters)", s.MaxLength),
		}
	}
	return Result{Passed: true, Kind: KindMaxLength}
}

// ── Markup ──────────────────────────────────────────────────

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)<style[^>]*>.*?</style>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)data:text/html`),
}

var anyTag = regexp.MustCompile(`<[^>]*>`)

// Sanitize removes script and style blocks, javascript: and data: URLs,
// inline event handlers and any remaining tags, then trims.
func Sanitize(text string) string {
	for _, re := range dangerousPatterns {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(anyTag.ReplaceAllString(text, ""))
}

// ── Suspicious Patterns ─────────────────────────────────────

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`(?i)drop\s+table`),
	regexp.MustCompile(`(?i)insert\s+into`),
	regexp.MustCompile(`(?i)delete\s+from`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)document\.`),
	regexp.MustCompile(`(?i)<img[^>]*on\w+\s*=`),
}

func evalSuspicious(text string) Result {
	for _, re := range suspiciousPatterns {
		if re.MatchString(text) {
			return Result{Kind: KindSuspiciousPattern, Message: "Suspicious pattern detected"}
		}
	}
	return Result{Passed: true, Kind: KindSuspiciousPattern}
}

// ── Special Characters ──────────────────────────────────────

func (s *Screener) evalSpecialChars(text string) Result {
	special := 0
	for _, r := range text {
		switch r {
		case '<', '>', '"', '\'', '(', ')', '[', ']', '{', '}':
			special++
		}
	}
	if float64(special) > float64(utf8.RuneCountInString(text))*s.SpecialCharRatio {
		return Result{Kind: KindSpecialChars, Message: "Excessive special characters"}
	}
	return Result{Passed: true, Kind: KindSpecialChars}
}

// ── Repetition ──────────────────────────────────────────────

func (s *Screener) evalRepetition(text string) Result {
	if s.RepeatRun > 1 && longestRun(text) >= s.RepeatRun {
		return Result{Kind: KindRepetition, Message: "Suspicious repetition"}
	}
	return Result{Passed: true, Kind: KindRepetition}
}

func longestRun(text string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range text {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// ── Prompt Injection Detection ──────────────────────────────

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?|directions?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?|context)`),
	regexp.MustCompile(`(?i)new\s+instructions?:\s*`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
}

var highSensitivityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions?)`),
	regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?|rules?)`),
	regexp.MustCompile(`(?i)repeat\s+(your|the)\s+(system\s+)?(prompt|instructions?)\s+verbatim`),
}

func (s *Screener) evalPromptInjection(text string) Result {
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return Result{Kind: KindPromptInjection, Message: "Potential prompt injection detected"}
		}
	}
	if s.HighSensitivity {
		for _, re := range highSensitivityPatterns {
			if re.MatchString(text) {
				return Result{Kind: KindPromptInjection, Message: "Potential prompt injection detected (high sensitivity)"}
			}
		}
	}
	return Result{Passed: true, Kind: KindPromptInjection}
}
