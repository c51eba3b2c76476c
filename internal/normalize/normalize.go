// Package normalize reshapes raw model text into the reply format shown
// to farmers: plain-text "- " bullets, one per line, with an intro
// paragraph split off when the text has no paragraph structure.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Under-detailed thresholds.
const (
	MinDetailedLength  = 220
	MinDetailedBullets = 3
)

var (
	trailingSpace = regexp.MustCompile(`[ \t\r\f\v]+\n`)
	inlineBullet  = regexp.MustCompile(`(^|[^\n])\s-\s+`)
)

// Reply strips emphasis markup, trailing whitespace before line breaks and
// moves inline " - " bullets onto their own lines. When no blank line is
// present and the text before the first bullet has more than two
// sentences, a paragraph break is inserted after the second sentence.
// Bullet lines are never split.
func Reply(text string) string {
	s := strings.ReplaceAll(text, "**", "")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = strings.TrimSpace(s)
	s = inlineBullet.ReplaceAllString(s, "${1}\n- ")
	if strings.Contains(s, "\n\n") {
		return s
	}

	intro, body := s, ""
	if i := firstBullet(s); i >= 0 {
		intro, body = strings.TrimRight(s[:i], "\n"), s[i:]
	}
	sentences := splitSentences(intro)
	if len(sentences) <= 2 {
		return s
	}
	first := strings.Join(sentences[:2], " ")
	rest := strings.Join(sentences[2:], " ")
	if body != "" {
		rest += "\n" + body
	}
	return strings.TrimSpace(first + "\n\n" + rest)
}

// firstBullet returns the byte offset of the first "- " line, or -1.
func firstBullet(s string) int {
	off := 0
	for _, line := range strings.SplitAfter(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			return off
		}
		off += len(line)
	}
	return -1
}

// splitSentences splits after '.', '!' or '?' followed by spaces or tabs.
// Line breaks never split, so bullet lines stay intact.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		if j == i+1 || j == len(s) {
			continue
		}
		out = append(out, s[start:i+1])
		start = j
		i = j - 1
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// LooksUnderdetailed reports a reply that is too short or has fewer than
// MinDetailedBullets bullet lines.
func LooksUnderdetailed(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < MinDetailedLength {
		return true
	}
	bullets := 0
	for _, line := range strings.Split(t, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			bullets++
		}
	}
	return bullets < MinDetailedBullets
}
