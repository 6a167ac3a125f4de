package contract

import (
	"fmt"
	"regexp"
	"strings"
)

// RangeMatcher checks a count against an inclusive range. The zero value
// requires at least one with no upper bound after Validate.
type RangeMatcher struct {
	// MinCount is the minimum count allowed. Defaults to 1.
	MinCount int `mapstructure:"min_count"`
	// MaxCount is the maximum count allowed. Nil means no upper bound.
	MaxCount *int `mapstructure:"max_count"`
}

// Validate applies defaults and rejects impossible ranges.
func (m *RangeMatcher) Validate() error {
	if m.MinCount == 0 {
		m.MinCount = 1
	}
	if m.MinCount < 1 {
		return fmt.Errorf("minimum count must be >= 1, got %d", m.MinCount)
	}
	if m.MaxCount != nil {
		if *m.MaxCount < 1 {
			return fmt.Errorf("maximum count must be >= 1, got %d", *m.MaxCount)
		}
		if *m.MaxCount < m.MinCount {
			return fmt.Errorf("maximum count must be >= minimum count, got %d < %d", *m.MaxCount, m.MinCount)
		}
	}
	return nil
}

// Check reports whether the count falls below or above the range. Never
// both at once.
func (m RangeMatcher) Check(count int) (tooSmall, tooLarge bool) {
	tooSmall = count < m.MinCount
	tooLarge = m.MaxCount != nil && count > *m.MaxCount
	return tooSmall, tooLarge
}

// Match checks the count against the range and returns a violation
// message naming the counted kind, or "" when the count is in range.
func (m RangeMatcher) Match(count int, kind string) string {
	kind = strings.ReplaceAll(kind, "_", " ")
	kind = strings.TrimRight(kind, "s") + "s"

	tooSmall, tooLarge := m.Check(count)
	if tooSmall {
		return fmt.Sprintf("Too few %s found: %d. Expected: %d.", kind, count, m.MinCount)
	}
	if tooLarge {
		return fmt.Sprintf("Too many %s found: %d. Expected: %d.", kind, count, *m.MaxCount)
	}
	return ""
}

// StringMatcher compares two strings under configurable normalization.
type StringMatcher struct {
	// IgnoreWhitespace strips spaces from both values before comparing.
	IgnoreWhitespace bool `mapstructure:"ignore_whitespace"`
	// CaseInsensitive compares the values case-insensitively.
	CaseInsensitive bool `mapstructure:"case_insensitive"`
	// CompareStartOnly matches when either value is a prefix of the
	// other, e.g. "varchar" against "varchar(32)".
	CompareStartOnly bool `mapstructure:"compare_start_only"`
}

// Match compares actual against expected. Two absent values match; an
// absent value never matches a present one.
func (m StringMatcher) Match(actual, expected string) bool {
	if actual == "" || expected == "" {
		return actual == "" && expected == ""
	}

	if m.IgnoreWhitespace {
		actual = strings.ReplaceAll(actual, " ", "")
		expected = strings.ReplaceAll(expected, " ", "")
	}
	if m.CaseInsensitive {
		actual = strings.ToLower(actual)
		expected = strings.ToLower(expected)
	}

	if m.CompareStartOnly {
		return strings.HasPrefix(expected, actual) || strings.HasPrefix(actual, expected)
	}
	return actual == expected
}

// PatternMatcher matches a value against include and exclude patterns.
// Each pattern is first compared literally and only then as a regular
// expression anchored at the start of the value, so patterns containing
// regex metacharacters still match their own literal spelling.
type PatternMatcher struct {
	// Include lists patterns a value must match to be selected.
	Include []string `mapstructure:"include"`
	// Exclude lists patterns that reject a value outright.
	Exclude []string `mapstructure:"exclude"`
	// MatchAll requires all patterns of a list to match rather than any.
	MatchAll bool `mapstructure:"match_all"`

	include []compiledPattern
	exclude []compiledPattern
}

type compiledPattern struct {
	literal string
	re      *regexp.Regexp
}

func (p compiledPattern) match(value string) bool {
	if p.literal == value {
		return true
	}
	return p.re.MatchString(value)
}

// Compile validates the configured patterns. It must be called once
// before Match.
func (m *PatternMatcher) Compile() error {
	var err error
	if m.include, err = compilePatterns(m.Include); err != nil {
		return err
	}
	if m.exclude, err = compilePatterns(m.Exclude); err != nil {
		return err
	}
	return nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, len(patterns))
	for i, pattern := range patterns {
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		compiled[i] = compiledPattern{literal: pattern, re: re}
	}
	return compiled, nil
}

// Match reports whether the value passes the configured patterns. An
// empty value never matches. A value hitting the exclude patterns never
// matches; past that, an empty include list passes everything through.
func (m *PatternMatcher) Match(value string) bool {
	if value == "" {
		return false
	}

	if m.Excluded(value) {
		return false
	}
	if len(m.include) == 0 {
		return true
	}
	return matchPatterns(m.include, value, m.MatchAll)
}

// Excluded reports whether the value hits the exclude patterns.
func (m *PatternMatcher) Excluded(value string) bool {
	if value == "" {
		return false
	}
	return len(m.exclude) > 0 && matchPatterns(m.exclude, value, m.MatchAll)
}

func matchPatterns(patterns []compiledPattern, value string, matchAll bool) bool {
	for _, p := range patterns {
		hit := p.match(value)
		if matchAll && !hit {
			return false
		}
		if !matchAll && hit {
			return true
		}
	}
	return matchAll
}
