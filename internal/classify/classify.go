// Package classify computes the language, complexity and conversational
// intent of a farmer's message. Everything here is pure and deterministic.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kisaansahayak/sahayak/pkg/models"
)

// Thresholds.
const (
	// ScriptShareThreshold is the minimum share of letter-class characters
	// a script needs before the text is classified as non-English.
	ScriptShareThreshold = 0.30

	ElaborationHintMaxLen   = 60
	FollowUpMaxLen          = 80
	LooseContinuationMaxLen = 120

	HighComplexityScore   = 5
	MediumComplexityScore = 2
)

// Complexity length breakpoints, each worth one more point.
var lengthBreakpoints = []int{90, 160, 240}

type scriptRange struct{ lo, hi rune }

var (
	devanagari = scriptRange{0x0900, 0x097F}
	gurmukhi   = scriptRange{0x0A00, 0x0A7F}
	tamil      = scriptRange{0x0B80, 0x0BFF}
	telugu     = scriptRange{0x0C00, 0x0C7F}

	// indicLetters spans every Brahmic block from Devanagari to Malayalam.
	indicLetters = scriptRange{0x0900, 0x0D7F}
)

func (s scriptRange) has(r rune) bool { return r >= s.lo && r <= s.hi }

// Classifier runs the detectors against one Lexicon.
type Classifier struct {
	lex          Lexicon
	conjunctions *regexp.Regexp
	topics       *regexp.Regexp
	separators   *regexp.Regexp
}

// New compiles a Classifier for lex.
func New(lex Lexicon) *Classifier {
	return &Classifier{
		lex:          lex,
		conjunctions: wordPattern(lex.Conjunctions),
		topics:       wordPattern(lex.ComplexityTopics),
		separators:   regexp.MustCompile(`[,;]`),
	}
}

func wordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// Version returns the lexicon version this classifier was built with.
func (c *Classifier) Version() string { return c.lex.Version }

// Classify runs every detector over text.
func (c *Classifier) Classify(text string) models.Classification {
	newTopic := c.LooksLikeNewTopic(text)
	return models.Classification{
		Language:            c.DetectLanguage(text),
		Complexity:          c.Complexity(text),
		WantsDetail:         c.WantsDetail(text),
		IsElaborationOnly:   c.IsElaborationOnly(text),
		IsElaborationHint:   c.IsElaborationHint(text),
		IsFollowUp:          c.IsFollowUp(text),
		IsLooseContinuation: runeLen(strings.TrimSpace(text)) <= LooseContinuationMaxLen && !newTopic,
		IsNewTopic:          newTopic,
	}
}

// ── Language ────────────────────────────────────────────────

// DetectLanguage returns the dominant language by script share. Gurmukhi,
// Tamil and Telugu win outright; Devanagari is split between Marathi and
// Hindi by marker words, defaulting to Hindi.
func (c *Classifier) DetectLanguage(text string) models.Language {
	t := strings.TrimSpace(text)
	if t == "" {
		return models.LanguageEnglish
	}

	var dev, pa, ta, te, letters int
	for _, r := range t {
		switch {
		case devanagari.has(r):
			dev++
		case tamil.has(r):
			ta++
		case telugu.has(r):
			te++
		case gurmukhi.has(r):
			pa++
		}
		if isLatinLetter(r) || indicLetters.has(r) {
			letters++
		}
	}
	if letters == 0 {
		return models.LanguageEnglish
	}

	share := func(n int) float64 { return float64(n) / float64(letters) }
	devS, paS, taS, teS := share(dev), share(pa), share(ta), share(te)
	top := max(devS, paS, taS, teS)

	switch {
	case top < ScriptShareThreshold:
		return models.LanguageEnglish
	case paS == top:
		return models.LanguagePunjabi
	case taS == top:
		return models.LanguageTamil
	case teS == top:
		return models.LanguageTelugu
	}

	lower := strings.ToLower(t)
	ranked := []struct {
		lang    models.Language
		markers []string
	}{
		{models.LanguageMarathi, c.lex.MarathiMarkers},
		{models.LanguageHindi, c.lex.HindiMarkers},
	}
	for _, r := range ranked {
		if containsAny(lower, r.markers) {
			return r.lang
		}
	}
	return models.LanguageHindi
}

func isLatinLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// ── Complexity ──────────────────────────────────────────────

// Score returns the raw complexity score. Adding question marks,
// conjunctions, separators or topic words never lowers it.
func (c *Classifier) Score(text string) int {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}

	score := 0
	n := runeLen(t)
	for _, bp := range lengthBreakpoints {
		if n > bp {
			score++
		}
	}

	switch q := strings.Count(t, "?"); {
	case q >= 2:
		score += 2
	case q == 1:
		score++
	}

	if len(c.separators.FindAllStringIndex(t, -1)) >= 3 {
		score++
	}
	if len(c.conjunctions.FindAllStringIndex(t, -1)) >= 2 {
		score++
	}
	if len(c.topics.FindAllStringIndex(t, -1)) >= 2 {
		score++
	}
	return score
}

// Complexity maps Score onto a tier.
func (c *Classifier) Complexity(text string) models.Complexity {
	switch s := c.Score(text); {
	case s >= HighComplexityScore:
		return models.ComplexityHigh
	case s >= MediumComplexityScore:
		return models.ComplexityMedium
	default:
		return models.ComplexityLow
	}
}

// ── Intent ──────────────────────────────────────────────────

// WantsDetail reports whether text mentions any detail phrase.
func (c *Classifier) WantsDetail(text string) bool {
	return containsAny(strings.ToLower(text), c.lex.DetailPhrases)
}

// IsElaborationOnly reports whether the whole trimmed message is an
// elaboration request such as "elaborate".
func (c *Classifier) IsElaborationOnly(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range c.lex.ElaborationOnly {
		if t == p {
			return true
		}
	}
	return false
}

// IsElaborationHint reports a short message that asks for detail.
func (c *Classifier) IsElaborationHint(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || runeLen(t) > ElaborationHintMaxLen {
		return false
	}
	return c.WantsDetail(t)
}

// IsFollowUp reports a short "what do I do now" style message.
func (c *Classifier) IsFollowUp(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || runeLen(t) > FollowUpMaxLen {
		return false
	}
	return containsAny(t, c.lex.FollowUpPhrases)
}

// LooksLikeNewTopic reports whether text names an agriculture subject of
// its own.
func (c *Classifier) LooksLikeNewTopic(text string) bool {
	return containsAny(strings.ToLower(text), c.lex.TopicHints)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// ── Package-level helpers ───────────────────────────────────

var std = New(DefaultLexicon)

// Classify runs every detector with DefaultLexicon.
func Classify(text string) models.Classification { return std.Classify(text) }

// DetectLanguage uses DefaultLexicon.
func DetectLanguage(text string) models.Language { return std.DetectLanguage(text) }

// Complexity uses DefaultLexicon.
func Complexity(text string) models.Complexity { return std.Complexity(text) }

// WantsDetail uses DefaultLexicon.
func WantsDetail(text string) bool { return std.WantsDetail(text) }

// ResponseLanguage reconciles the caller's requested language with the
// detected one: auto takes the detected language, and a non-English
// detection that disagrees with the request wins.
func ResponseLanguage(requested, detected models.Language) models.Language {
	if requested == "" || requested == models.LanguageAuto {
		return detected
	}
	if detected != models.LanguageEnglish && detected != requested {
		return detected
	}
	return requested
}
