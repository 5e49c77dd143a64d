package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

// matchFillInPattern tests a submitted value against an authored fill-in
// pattern. The pattern is an alternation of candidates split on "|"; within
// a candidate the * token means "any non-empty text". Candidates are
// compared whole, case per the question flag.
func matchFillInPattern(value, pattern string, caseSensitive bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	for _, candidate := range strings.Split(pattern, "|") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if matchCandidate(value, candidate, caseSensitive) {
			return true
		}
	}
	return false
}

// matchCandidate compiles one alternation candidate into a regex, quoting
// everything but the * wildcard which becomes ".+".
func matchCandidate(value, candidate string, caseSensitive bool) bool {
	var b strings.Builder
	if !caseSensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	for i, part := range strings.Split(candidate, "*") {
		if i > 0 {
			b.WriteString(".+")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// matchNumericPattern tests a submitted numeric value against an authored
// pattern: a single value or a low|high inclusive range. Comma and dot both
// act as the decimal separator; a reversed authored range is auto-corrected.
// Anything unparsable, submitted or authored, is simply not correct.
func matchNumericPattern(value, pattern string) bool {
	v, ok := parseDecimal(value)
	if !ok {
		return false
	}

	var low, high float64
	if idx := strings.Index(pattern, "|"); idx >= 0 {
		parts := strings.SplitN(pattern, "|", 2)
		var ok1, ok2 bool
		low, ok1 = parseDecimal(parts[0])
		high, ok2 = parseDecimal(parts[1])
		if !ok1 || !ok2 {
			return false
		}
		if low > high {
			low, high = high, low
		}
	} else {
		single, ok := parseDecimal(pattern)
		if !ok {
			return false
		}
		low, high = single, single
	}

	return v >= low && v <= high
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
