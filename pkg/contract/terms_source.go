package contract

import (
	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

func init() {
	RegisterTerm(TermDef{
		Name:        TermHasLoader,
		Description: "Source must declare the loader that ingests it.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasLoader{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasFreshness,
		Description: "Source must configure a freshness policy and loaded_at_field.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasFreshness{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasDownstreamDependencies,
		Description: "Number of nodes depending on the source must fall within the configured range.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasDownstreamDependencies{}
			if err := decodeOptions(options, &term.RangeMatcher); err != nil {
				return nil, err
			}
			if err := term.RangeMatcher.Validate(); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
}

type hasLoader struct{ metadataTerm }

func (hasLoader) Name() string { return TermHasLoader }

func (hasLoader) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	source, ok := item.(*artifact.Source)
	if !ok {
		return true
	}
	if source.Loader == "" {
		ctx.AddResult(TermHasLoader, "Loader not configured", item, parent)
		return false
	}
	return true
}

type hasFreshness struct{ metadataTerm }

func (hasFreshness) Name() string { return TermHasFreshness }

func (hasFreshness) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	source, ok := item.(*artifact.Source)
	if !ok {
		return true
	}
	if !source.HasFreshness() {
		ctx.AddResult(TermHasFreshness, "Freshness not configured", item, parent)
		return false
	}
	if source.LoadedAtField == "" {
		ctx.AddResult(TermHasFreshness, "Loaded at field not configured", item, parent)
		return false
	}
	return true
}

// hasDownstreamDependencies counts everything depending on the source,
// models and tests alike.
type hasDownstreamDependencies struct {
	manifestTerm
	RangeMatcher
}

func (hasDownstreamDependencies) Name() string { return TermHasDownstreamDependencies }

func (t *hasDownstreamDependencies) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	source, ok := item.(*artifact.Source)
	if !ok {
		return true
	}

	count := 0
	if graph := ctx.Graph(); graph != nil {
		count = len(graph.Dependants(source.UniqueID))
	}
	if message := t.Match(count, "downstream_dependencies"); message != "" {
		ctx.AddResult(TermHasDownstreamDependencies, message, item, parent)
		return false
	}
	return true
}
