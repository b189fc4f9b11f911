package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Window sizes around each pricing signal, in characters
const (
	windowPrefixLen = 8000
	windowPre       = 1200
	windowPost      = 2400
)

// windowSeparator marks the gap between two non-adjacent windows
const windowSeparator = "\n\n<!-- SNIP -->\n\n"

// Compiled patterns for pricing and product signals
var windowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[£$€]\s*\d`),
	regexp.MustCompile(`(?i)\b(per\s+month|a\s+month)\b`),
	regexp.MustCompile(`(?i)\bmonthly\b`),
	regexp.MustCompile(`(?i)\bannually\b|\byear\b`),
	regexp.MustCompile(`(?i)\bexcess\b|\bdeductible\b`),
	regexp.MustCompile(`(?i)\bcover\b|\bplan\b|\bpremium\b|\boptions\b`),
}

// productIndicatorPattern tells whether a page plausibly lists products
var productIndicatorPattern = regexp.MustCompile(`(?i)[£$€]\s*\d|\b(products?|plans?|cover|options?)\b`)

type span struct {
	start, end int
}

// BuildWindow compresses text into at most budget bytes, keeping the first
// windowPrefixLen characters and every region surrounding a price or plan
// keyword. Text that already fits is returned unchanged.
func BuildWindow(text string, budget int) string {
	if text == "" || budget <= 0 {
		return ""
	}
	if len(text) <= budget {
		return text
	}

	spans := []span{{0, runesForward(text, 0, windowPrefixLen)}}
	for _, pattern := range windowPatterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, span{
				start: runesBack(text, loc[0], windowPre),
				end:   runesForward(text, loc[1], windowPost),
			})
		}
	}

	var b strings.Builder
	for _, s := range mergeSpans(spans) {
		chunk := runeAligned(text, s.start, s.end)
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		remaining := budget - b.Len()
		if b.Len() > 0 {
			remaining -= len(windowSeparator)
		}
		if remaining <= 0 {
			break
		}
		if len(chunk) > remaining {
			chunk = truncateRunes(chunk, remaining)
			if chunk == "" {
				break
			}
		}

		if b.Len() > 0 {
			b.WriteString(windowSeparator)
		}
		b.WriteString(chunk)
	}

	return b.String()
}

// HasProductIndicators reports whether text contains currency amounts or
// product/plan/cover/option keywords
func HasProductIndicators(text string) bool {
	return productIndicatorPattern.MatchString(text)
}

// mergeSpans sorts spans by start and merges the ones that overlap or touch
func mergeSpans(spans []span) []span {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})

	merged := make([]span, 0, len(spans))
	for _, s := range spans {
		last := len(merged) - 1
		if last < 0 || s.start > merged[last].end {
			merged = append(merged, s)
			continue
		}
		if s.end > merged[last].end {
			merged[last].end = s.end
		}
	}
	return merged
}

// runesForward returns the byte offset n characters after from, capped at len(text)
func runesForward(text string, from, n int) int {
	i := from
	for ; n > 0 && i < len(text); n-- {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return i
}

// runesBack returns the byte offset n characters before from, floored at 0
func runesBack(text string, from, n int) int {
	i := from
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
	}
	return i
}

// runeAligned slices text so that neither end splits a UTF-8 sequence
func runeAligned(text string, start, end int) string {
	for start > 0 && start < len(text) && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}

// truncateRunes cuts s to at most n bytes on a rune boundary
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
