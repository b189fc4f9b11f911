package usecase

import (
	"encoding/json"
	"strings"
)

// Parse strategy names, reported for diagnostics and metrics
const (
	StrategyDirect         = "direct"
	StrategyCodeFence      = "code_fence"
	StrategyBracketMatch   = "bracket_match"
	StrategyBracketRepair  = "bracket_repair"
	StrategyObjectScavenge = "object_scavenge"
	StrategyNone           = "none"
)

// productNameKey marks a product-like object inside a broken response
const productNameKey = `"product_name"`

type parseStrategy struct {
	name  string
	parse func(response string) ([]any, bool)
}

// responseStrategies are tried in order; the first one that succeeds wins
var responseStrategies = []parseStrategy{
	{StrategyDirect, parseDirect},
	{StrategyCodeFence, parseCodeFence},
	{StrategyBracketMatch, parseBalancedArray},
	{StrategyBracketRepair, parseRepairedArray},
	{StrategyObjectScavenge, scavengeProductObjects},
}

// ParseProductResponse recovers the list of product-like items from a free-text
// model response. It returns the items, the name of the strategy that produced
// them and whether any strategy succeeded. It never panics on malformed input.
func ParseProductResponse(response string) ([]any, string, bool) {
	for _, strategy := range responseStrategies {
		if items, ok := strategy.parse(response); ok {
			return items, strategy.name, true
		}
	}
	return nil, StrategyNone, false
}

// parseDirect parses the whole response; a single object is wrapped in a list
func parseDirect(response string) ([]any, bool) {
	return decodeItems(response)
}

// parseCodeFence parses the first markdown code block. An unterminated block
// runs to the end of the response.
func parseCodeFence(response string) ([]any, bool) {
	start := strings.Index(response, "```")
	if start < 0 {
		return nil, false
	}
	body := response[start+3:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}

	if items, ok := decodeItems(body); ok {
		return items, true
	}
	return decodeItems(repairJSON(body))
}

// parseBalancedArray isolates the first string-aware balanced [...] span at the
// top level of the response that decodes to a list of objects. Lists nested
// inside an unterminated outer array are never considered.
func parseBalancedArray(response string) ([]any, bool) {
	for _, start := range topLevelOpenings(response, '[') {
		end := matchingClose(response, start, '[', ']')
		if end < 0 {
			continue
		}
		candidate := response[start : end+1]
		if items, ok := decodeObjectList(candidate); ok {
			return items, true
		}
		if items, ok := decodeObjectList(repairJSON(candidate)); ok {
			return items, true
		}
	}
	return nil, false
}

// topLevelOpenings returns the offsets of every openCh that sits outside any
// string literal and outside any open list or object
func topLevelOpenings(s string, openCh byte) []int {
	var starts []int
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
		case '[', '{':
			if c == openCh && depth == 0 {
				starts = append(starts, i)
			}
			depth++
		case ']', '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return starts
}

// parseRepairedArray takes everything between the first '[' and the last ']'
// and always repairs it before decoding
func parseRepairedArray(response string) ([]any, bool) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObjectList(repairJSON(response[start : end+1]))
}

// scavengeProductObjects recovers each complete object that carries a
// product_name key, ignoring the broken array around them
func scavengeProductObjects(response string) ([]any, bool) {
	if !strings.Contains(response, productNameKey) {
		return nil, false
	}

	var items []any
	for _, open := range productObjectOpenings(response) {
		end := matchingClose(response, open, '{', '}')
		if end < 0 {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(repairJSON(response[open:end+1])), &obj); err != nil {
			continue
		}
		if obj["product_name"] == nil {
			continue
		}
		items = append(items, obj)
	}

	return items, len(items) > 0
}

// productObjectOpenings returns, in order, the offset of the '{' that encloses
// each product_name key. Braces inside string literals and nested objects
// closed before the key are skipped.
func productObjectOpenings(s string) []int {
	var (
		openings []int
		stack    []int
		seen     = make(map[int]bool)
	)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
			if strings.HasPrefix(s[i:], productNameKey) && len(stack) > 0 {
				if open := stack[len(stack)-1]; s[open] == '{' && !seen[open] {
					seen[open] = true
					openings = append(openings, open)
				}
			}
			inString = true
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return openings
}

// decodeItems decodes s as a JSON list, or as a single object wrapped in a list
func decodeItems(s string) ([]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		return []any{t}, true
	}
	return nil, false
}

// decodeObjectList decodes s as a JSON list that is empty or holds at least
// one object, so an inner list of feature strings is not mistaken for output
func decodeObjectList(s string) ([]any, bool) {
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, false
	}
	if len(list) == 0 {
		return list, true
	}
	for _, item := range list {
		if _, ok := item.(map[string]any); ok {
			return list, true
		}
	}
	return nil, false
}

// matchingClose returns the index of the bracket closing the one at start,
// skipping brackets inside string literals, or -1 when it is never closed
func matchingClose(s string, start int, openCh, closeCh byte) int {
	depth := 0
	inString, escaped := false, false
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
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// repairJSON fixes the artifacts models commonly leave in JSON: trailing
// commas before a closing bracket, raw line breaks inside string values and
// stray control characters
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(c)
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c == '\n' || c == '\r' || c == '\t':
				b.WriteByte(' ')
			case c < 0x20 || c == 0x7f:
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == ',' && closesNext(s, i+1):
		case c == '\t' || c == '\n' || c == '\r':
			b.WriteByte(c)
		case c < 0x20 || c == 0x7f:
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closesNext reports whether the next non-space byte from i closes a list or object
func closesNext(s string, i int) bool {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}
