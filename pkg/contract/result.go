package contract

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
	"github.com/leapstack-labs/dbtcontracts/pkg/contract/patch"
)

// Result records one term violation with enough provenance to point a
// reviewer (or a CI annotation) at the exact YAML block that caused it.
// Patch fields are zero when the resource has no properties file or the
// file could not be located; the violation still stands.
type Result struct {
	Name       string `json:"name"`
	Path       string `json:"path,omitempty"`
	ResultType string `json:"result_type"`
	Level      string `json:"result_level"`
	Rule       string `json:"result_name"`
	Message    string `json:"message"`

	PatchPath      string `json:"patch_path,omitempty"`
	PatchStartLine int    `json:"patch_start_line,omitempty"`
	PatchStartCol  int    `json:"patch_start_col,omitempty"`
	PatchEndLine   int    `json:"patch_end_line,omitempty"`
	PatchEndCol    int    `json:"patch_end_col,omitempty"`

	ParentID   string `json:"parent_id,omitempty"`
	ParentName string `json:"parent_name,omitempty"`
	ParentType string `json:"parent_type,omitempty"`
	Index      *int   `json:"index,omitempty"`
}

// HasParent reports whether the result was built for a nested item.
func (r *Result) HasParent() bool {
	return r.ParentID != "" || r.ParentName != "" || r.ParentType != ""
}

// Title renders the rule name for display, e.g. "has_tests" -> "Has
// Tests".
func (r *Result) Title() string {
	words := strings.Split(strings.ReplaceAll(r.Rule, "_", " "), " ")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// GitHubAnnotation renders the result as a GitHub check-run annotation.
// See the annotations spec in the `output` param of 'Update a check run':
// https://docs.github.com/en/rest/checks/runs?apiVersion=2022-11-28#update-a-check-run
// Returns an error when the required fields (path, start/end line, level,
// message) are not all set.
func (r *Result) GitHubAnnotation() (map[string]any, error) {
	path := r.PatchPath
	if path == "" {
		path = r.Path
	}
	if path == "" || r.PatchStartLine == 0 || r.PatchEndLine == 0 || r.Level == "" || r.Message == "" {
		return nil, fmt.Errorf("result for %q has no provenance to format as a GitHub annotation", r.Name)
	}

	severity, _ := ParseSeverity(r.Level)
	return map[string]any{
		"path":             path,
		"start_line":       r.PatchStartLine,
		"start_column":     r.PatchStartCol,
		"end_line":         r.PatchEndLine,
		"end_column":       r.PatchEndCol,
		"annotation_level": severity.AnnotationLevel(),
		"title":            r.Title(),
		"message":          r.Message,
		"raw_details": map[string]any{
			"result_type": r.ResultType,
			"name":        r.Name,
		},
	}, nil
}

// newNodeResult builds a result for a top-level resource.
func (c *Context) newNodeResult(rule, message string, node artifact.Node) *Result {
	result := &Result{
		Name:       node.GetName(),
		Path:       node.GetOriginalFilePath(),
		ResultType: node.GetType().Title(),
		Level:      c.severityFor(rule).String(),
		Rule:       rule,
		Message:    message,
		PatchPath:  patch.PathFor(node),
	}

	if entry, ok := c.patchEntry(node); ok {
		applySpan(result, entry.Span())
	}
	return result
}

// newColumnResult builds a result for a column nested in a model or
// source.
func (c *Context) newColumnResult(rule, message string, column *artifact.Column, parent artifact.Node) *Result {
	result := &Result{
		Name:       column.Name,
		ResultType: "Column",
		Level:      c.severityFor(rule).String(),
		Rule:       rule,
		Message:    message,
	}
	if parent == nil {
		return result
	}

	result.Path = parent.GetOriginalFilePath()
	result.ResultType = parent.GetType().Title() + " Column"
	result.PatchPath = patch.PathFor(parent)
	applyParent(result, parent)

	if table, ok := parent.(artifact.TableNode); ok {
		if idx := table.GetColumns().Index(column.Name); idx >= 0 {
			result.Index = &idx
		}
	}

	if parentEntry, ok := c.patchEntry(parent); ok {
		if entry, ok := parentEntry.Child("columns", column.Name); ok {
			applySpan(result, entry.Span())
		}
	}
	return result
}

// newArgumentResult builds a result for a macro argument.
func (c *Context) newArgumentResult(rule, message string, arg *artifact.MacroArgument, parent artifact.Node) *Result {
	result := &Result{
		Name:       arg.Name,
		ResultType: "Argument",
		Level:      c.severityFor(rule).String(),
		Rule:       rule,
		Message:    message,
	}
	macro, ok := parent.(*artifact.Macro)
	if !ok {
		return result
	}

	result.Path = macro.OriginalFilePath
	result.ResultType = "Macro Argument"
	result.PatchPath = patch.PathFor(macro)
	applyParent(result, macro)

	for i, candidate := range macro.Arguments {
		if candidate.Name == arg.Name {
			idx := i
			result.Index = &idx
			break
		}
	}

	if macroEntry, ok := c.patchEntry(macro); ok {
		if entry, ok := macroEntry.Child("arguments", arg.Name); ok {
			applySpan(result, entry.Span())
		}
	}
	return result
}

// patchEntry locates a node's own mapping in its properties file.
func (c *Context) patchEntry(node artifact.Node) (*patch.Entry, bool) {
	file := c.patches.ForNode(node)
	if file == nil {
		return nil, false
	}

	switch v := node.(type) {
	case *artifact.Model:
		return file.Resource("models", v.Name)
	case *artifact.Source:
		return file.SourceTable(v.SourceName, v.Name)
	case *artifact.Macro:
		return file.Resource("macros", v.Name)
	default:
		return nil, false
	}
}

func applySpan(result *Result, span patch.Span) {
	result.PatchStartLine = span.StartLine
	result.PatchStartCol = span.StartCol
	result.PatchEndLine = span.EndLine
	result.PatchEndCol = span.EndCol
}

func applyParent(result *Result, parent artifact.Node) {
	result.ParentID = parent.GetUniqueID()
	result.ParentName = parent.GetName()
	result.ParentType = parent.GetType().Title()
}
