package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

// DefaultOutputFileName is used when results are written to a directory.
const DefaultOutputFileName = "contracts_results"

// WriteResults writes results to path in the given format and returns
// the path written. A directory path gets the default file name, and
// the file extension is forced to match the format. Supported formats:
// text, json, jsonl, github-annotations.
func WriteResults(results []*contract.Result, format, path string) (string, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(format))

	var ext string
	var write func(*os.File) error
	switch normalized {
	case "text", "txt":
		ext = ".txt"
		write = func(f *os.File) error { return writeText(results, f) }
	case "json":
		ext = ".json"
		write = func(f *os.File) error { return writeJSON(results, f) }
	case "jsonl":
		ext = ".json"
		write = func(f *os.File) error { return writeJSONL(results, f) }
	case "github_annotations":
		ext = ".json"
		write = func(f *os.File) error { return writeGitHubAnnotations(results, f) }
	default:
		return "", fmt.Errorf("unrecognised output format %q", format)
	}

	path, err := resolveOutputPath(path, ext)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := write(f); err != nil {
		return "", err
	}
	return path, nil
}

// resolveOutputPath appends the default file name when path is a
// directory and swaps the extension for the format's.
func resolveOutputPath(path, ext string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultOutputFileName)
	}
	path = strings.TrimSuffix(path, filepath.Ext(path)) + ext

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return path, nil
}

// sortResults orders results for stable display: by type, file,
// parent, child index, then name.
func sortResults(results []*contract.Result) []*contract.Result {
	sorted := make([]*contract.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ResultType != b.ResultType {
			return a.ResultType < b.ResultType
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.ParentName != b.ParentName {
			return a.ParentName < b.ParentName
		}
		if ai, bi := indexOrZero(a), indexOrZero(b); ai != bi {
			return ai < bi
		}
		return a.Name < b.Name
	})
	return sorted
}

func indexOrZero(r *contract.Result) int {
	if r.Index == nil {
		return 0
	}
	return *r.Index
}

// ResultsTable renders results as a table suitable for a terminal or a
// text file.
func ResultsTable(results []*contract.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Type", "Location", "Name", "Rule", "Message"})

	for _, r := range sortResults(results) {
		t.AppendRow(table.Row{r.ResultType, resultLocation(r), resultName(r), r.Rule, r.Message})
	}
	return t.Render()
}

// resultLocation points at the properties file span when known,
// falling back to the resource path.
func resultLocation(r *contract.Result) string {
	if r.PatchPath == "" {
		return r.Path
	}
	if r.PatchStartLine == 0 {
		return r.PatchPath
	}
	return fmt.Sprintf("%s:%d:%d", r.PatchPath, r.PatchStartLine, r.PatchStartCol)
}

// resultName shows nested items as "parent > child".
func resultName(r *contract.Result) string {
	if r.HasParent() {
		return r.ParentName + " > " + r.Name
	}
	return r.Name
}

func writeText(results []*contract.Result, f *os.File) error {
	if _, err := f.WriteString(ResultsTable(results) + "\n"); err != nil {
		return fmt.Errorf("write text results: %w", err)
	}
	return nil
}

func writeJSON(results []*contract.Result, f *os.File) error {
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sortResults(results)); err != nil {
		return fmt.Errorf("write json results: %w", err)
	}
	return nil
}

func writeJSONL(results []*contract.Result, f *os.File) error {
	enc := json.NewEncoder(f)
	for _, r := range sortResults(results) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write jsonl results: %w", err)
		}
	}
	return nil
}

func writeGitHubAnnotations(results []*contract.Result, f *os.File) error {
	annotations := make([]map[string]any, 0, len(results))
	for _, r := range sortResults(results) {
		annotation, err := r.GitHubAnnotation()
		if err != nil {
			return fmt.Errorf("annotation for %s: %w", r.Name, err)
		}
		annotations = append(annotations, annotation)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(annotations); err != nil {
		return fmt.Errorf("write github annotations: %w", err)
	}
	return nil
}
