package contract

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
	"github.com/leapstack-labs/dbtcontracts/pkg/contract/patch"
	"github.com/leapstack-labs/dbtcontracts/pkg/graph"
)

// Context carries the loaded artifacts through a contract run and
// accumulates the results terms record. The artifacts are immutable
// snapshots; the properties-file cache and the result list are the only
// mutable state, both safe for concurrent term evaluation.
type Context struct {
	// Manifest is the parsed manifest, nil when unavailable.
	Manifest *artifact.Manifest
	// Catalog is the parsed catalog, nil when `dbt docs generate` has
	// not been run.
	Catalog *artifact.Catalog

	severity Severity
	enforced map[string]bool
	logger   *slog.Logger
	patches  *patch.Cache

	graphOnce sync.Once
	graph     *graph.Graph

	mu      sync.Mutex
	results []*Result
}

// ContextOptions configures a contract run context.
type ContextOptions struct {
	// ProjectDir is the dbt project root; properties-file paths resolve
	// against it.
	ProjectDir string
	// Severity is the level recorded on results. Defaults to warning.
	Severity *Severity
	// Enforced lists term names whose results are recorded as errors
	// regardless of the default severity.
	Enforced []string
	// Logger receives debug logging. Defaults to a discard logger.
	Logger *slog.Logger
}

// NewContext creates a context over the given artifact snapshots. Either
// artifact may be nil; terms requiring a missing one fail fast when the
// contract validates.
func NewContext(manifest *artifact.Manifest, catalog *artifact.Catalog, opts ContextOptions) *Context {
	severity := SeverityWarning
	if opts.Severity != nil {
		severity = *opts.Severity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	enforced := make(map[string]bool, len(opts.Enforced))
	for _, name := range opts.Enforced {
		enforced[name] = true
	}

	return &Context{
		Manifest: manifest,
		Catalog:  catalog,
		severity: severity,
		enforced: enforced,
		logger:   logger,
		patches:  patch.NewCache(opts.ProjectDir),
	}
}

// Graph returns the dependency graph of the manifest, built once on
// first use. Nil when the context has no manifest.
func (c *Context) Graph() *graph.Graph {
	if c.Manifest == nil {
		return nil
	}
	c.graphOnce.Do(func() {
		c.graph = graph.FromManifest(c.Manifest)
	})
	return c.graph
}

// AddResult records a violation of a term against an item. The result
// strategy is chosen by the item's runtime type; an unregistered type is
// a programming error and panics rather than dropping the result.
func (c *Context) AddResult(name, message string, item artifact.Resource, parent artifact.Node) {
	result := c.buildResult(name, message, item, parent)

	c.logger.Debug("recorded result",
		"rule", name,
		"item", item.GetName(),
		"message", message,
	)

	c.mu.Lock()
	c.results = append(c.results, result)
	c.mu.Unlock()
}

// Results returns the results recorded so far.
func (c *Context) Results() []*Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]*Result, len(c.results))
	copy(results, c.results)
	return results
}

// severityFor resolves the level recorded for one rule name.
func (c *Context) severityFor(rule string) Severity {
	if c.enforced[rule] {
		return SeverityError
	}
	return c.severity
}

// buildResult dispatches on the item type to the matching result
// construction strategy.
func (c *Context) buildResult(name, message string, item artifact.Resource, parent artifact.Node) *Result {
	switch v := item.(type) {
	case *artifact.Model:
		return c.newNodeResult(name, message, v)
	case *artifact.Source:
		return c.newNodeResult(name, message, v)
	case *artifact.Macro:
		return c.newNodeResult(name, message, v)
	case *artifact.Column:
		return c.newColumnResult(name, message, v, parent)
	case *artifact.MacroArgument:
		return c.newArgumentResult(name, message, v, parent)
	default:
		panic(fmt.Sprintf("contract: no result strategy registered for item type %T", item))
	}
}
