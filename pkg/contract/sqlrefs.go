package contract

import (
	"regexp"
	"sort"
	"strings"
)

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	jinjaCommentRe = regexp.MustCompile(`(?s)\{#.*?#\}`)
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
)

// findHardcodedRefs scans raw model SQL for relations selected directly
// instead of through ref() or source(). CTE names defined in the script
// do not count, nor does anything templated or parenthesised. Returns
// the offending names sorted and deduplicated.
func findHardcodedRefs(sql string) []string {
	code := strings.ToLower(sql)
	code = blockCommentRe.ReplaceAllString(code, " ")
	code = jinjaCommentRe.ReplaceAllString(code, " ")
	code = lineCommentRe.ReplaceAllString(code, " ")
	code, _, _ = strings.Cut(code, ";")

	replacer := strings.NewReplacer(
		"{{", " {{ ",
		"}}", " }} ",
		"(", " ( ",
		")", " ) ",
		",", " , ",
	)
	tokens := strings.Fields(replacer.Replace(code))

	ctes := map[string]bool{}
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i+1] == "as" && tokens[i+2] == "(" {
			ctes[tokens[i]] = true
		}
	}

	seen := map[string]bool{}
	var refs []string
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] != "from" && tokens[i] != "join" {
			continue
		}
		next := tokens[i+1]
		if next == "values" || ctes[next] {
			continue
		}
		if strings.HasPrefix(next, "{") || strings.HasPrefix(next, "(") {
			continue
		}
		if !seen[next] {
			seen[next] = true
			refs = append(refs, next)
		}
	}

	sort.Strings(refs)
	return refs
}
