package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

func intPtr(i int) *int { return &i }

func TestRangeMatcherValidate(t *testing.T) {
	tests := []struct {
		name    string
		matcher contract.RangeMatcher
		wantErr bool
		wantMin int
	}{
		{name: "defaults min to 1", matcher: contract.RangeMatcher{}, wantMin: 1},
		{name: "explicit range", matcher: contract.RangeMatcher{MinCount: 2, MaxCount: intPtr(5)}, wantMin: 2},
		{name: "negative min", matcher: contract.RangeMatcher{MinCount: -1}, wantErr: true},
		{name: "zero max", matcher: contract.RangeMatcher{MaxCount: intPtr(0)}, wantErr: true},
		{name: "max below min", matcher: contract.RangeMatcher{MinCount: 3, MaxCount: intPtr(2)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.matcher.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMin, tt.matcher.MinCount)
		})
	}
}

func TestRangeMatcherCheck(t *testing.T) {
	m := contract.RangeMatcher{MinCount: 2, MaxCount: intPtr(4)}

	tooSmall, tooLarge := m.Check(1)
	assert.True(t, tooSmall)
	assert.False(t, tooLarge)

	tooSmall, tooLarge = m.Check(3)
	assert.False(t, tooSmall)
	assert.False(t, tooLarge)

	tooSmall, tooLarge = m.Check(5)
	assert.False(t, tooSmall)
	assert.True(t, tooLarge)
}

func TestRangeMatcherMessages(t *testing.T) {
	m := contract.RangeMatcher{MinCount: 1, MaxCount: intPtr(2)}

	assert.Equal(t, "Too few tests found: 0. Expected: 1.", m.Match(0, "tests"))
	assert.Equal(t, "Too many tests found: 3. Expected: 2.", m.Match(3, "tests"))
	assert.Empty(t, m.Match(1, "tests"))

	// kinds are normalized to space-separated plurals
	assert.Equal(t,
		"Too few downstream dependencies found: 0. Expected: 1.",
		m.Match(0, "downstream_dependencies"))
	assert.Equal(t, "Too few tests found: 0. Expected: 1.", m.Match(0, "test"))
}

func TestStringMatcher(t *testing.T) {
	tests := []struct {
		name             string
		matcher          contract.StringMatcher
		actual, expected string
		want             bool
	}{
		{name: "exact match", actual: "VARCHAR", expected: "VARCHAR", want: true},
		{name: "exact mismatch", actual: "varchar", expected: "VARCHAR", want: false},
		{name: "both empty", actual: "", expected: "", want: true},
		{name: "one empty", actual: "varchar", expected: "", want: false},
		{
			name:    "case insensitive",
			matcher: contract.StringMatcher{CaseInsensitive: true},
			actual:  "varchar", expected: "VARCHAR", want: true,
		},
		{
			name:    "ignore whitespace",
			matcher: contract.StringMatcher{IgnoreWhitespace: true},
			actual:  "timestamp with time zone", expected: "timestampwith timezone", want: true,
		},
		{
			name:    "compare start only",
			matcher: contract.StringMatcher{CompareStartOnly: true},
			actual:  "varchar", expected: "varchar(32)", want: true,
		},
		{
			name:    "compare start only either direction",
			matcher: contract.StringMatcher{CompareStartOnly: true},
			actual:  "varchar(32)", expected: "varchar", want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher.Match(tt.actual, tt.expected))
		})
	}
}

func TestPatternMatcher(t *testing.T) {
	tests := []struct {
		name    string
		matcher contract.PatternMatcher
		value   string
		want    bool
	}{
		{name: "no patterns passes", value: "anything", want: true},
		{name: "empty value never matches", matcher: contract.PatternMatcher{}, value: "", want: false},
		{
			name:    "include regex anchored at start",
			matcher: contract.PatternMatcher{Include: []string{"stg_.*"}},
			value:   "stg_orders", want: true,
		},
		{
			name:    "anchored regex rejects mid-string match",
			matcher: contract.PatternMatcher{Include: []string{"orders"}},
			value:   "stg_orders", want: false,
		},
		{
			name:    "literal equality wins over regex meaning",
			matcher: contract.PatternMatcher{Include: []string{"a+b"}},
			value:   "a+b", want: true,
		},
		{
			name:    "exclude rejects",
			matcher: contract.PatternMatcher{Include: []string{".*"}, Exclude: []string{"tmp_.*"}},
			value:   "tmp_orders", want: false,
		},
		{
			name:    "exclude only passes the rest through",
			matcher: contract.PatternMatcher{Exclude: []string{"tmp_.*"}},
			value:   "orders", want: true,
		},
		{
			name:    "match all requires every include",
			matcher: contract.PatternMatcher{Include: []string{"stg_.*", ".*_orders"}, MatchAll: true},
			value:   "stg_orders", want: true,
		},
		{
			name:    "match all fails on one miss",
			matcher: contract.PatternMatcher{Include: []string{"stg_.*", ".*_payments"}, MatchAll: true},
			value:   "stg_orders", want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.matcher.Compile())
			assert.Equal(t, tt.want, tt.matcher.Match(tt.value))
		})
	}
}

func TestPatternMatcherCompileError(t *testing.T) {
	m := contract.PatternMatcher{Include: []string{"("}}
	require.Error(t, m.Compile())
}
