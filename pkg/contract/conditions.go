package contract

import (
	"strings"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// Condition is a scope filter: contracts only evaluate items every
// configured condition accepts.
type Condition interface {
	// Name returns the registry key of the condition.
	Name() string
	// Check reports whether the item is in scope.
	Check(item artifact.Resource) bool
}

// Condition registry keys.
const (
	ConditionName           = "name"
	ConditionPath           = "path"
	ConditionTag            = "tag"
	ConditionMeta           = "meta"
	ConditionIsMaterialized = "is_materialized"
	ConditionIsEnabled      = "is_enabled"
)

func init() {
	RegisterCondition(ConditionDef{
		Name:        ConditionName,
		Description: "Select items whose name matches the configured patterns.",
		Build: func(options map[string]any) (Condition, error) {
			cond := &nameCondition{}
			if err := decodeOptions(options, &cond.patterns); err != nil {
				return nil, err
			}
			if err := cond.patterns.Compile(); err != nil {
				return nil, err
			}
			return cond, nil
		},
	})
	RegisterCondition(ConditionDef{
		Name:        ConditionPath,
		Description: "Select resources whose file or properties path matches the configured patterns.",
		Build: func(options map[string]any) (Condition, error) {
			cond := &pathCondition{}
			if err := decodeOptions(options, &cond.patterns); err != nil {
				return nil, err
			}
			if err := cond.patterns.Compile(); err != nil {
				return nil, err
			}
			return cond, nil
		},
	})
	RegisterCondition(ConditionDef{
		Name:        ConditionTag,
		Description: "Select items carrying at least one of the configured tags.",
		Build: func(options map[string]any) (Condition, error) {
			var opts struct {
				Tags []string `mapstructure:"tags"`
			}
			if err := decodeOptions(options, &opts); err != nil {
				return nil, err
			}
			return &tagCondition{tags: opts.Tags}, nil
		},
	})
	RegisterCondition(ConditionDef{
		Name:        ConditionMeta,
		Description: "Select items whose meta values match the configured mapping.",
		Build: func(options map[string]any) (Condition, error) {
			var opts struct {
				Meta map[string]any `mapstructure:"meta"`
			}
			if err := decodeOptions(options, &opts); err != nil {
				return nil, err
			}
			return &metaCondition{meta: stringValues(opts.Meta)}, nil
		},
	})
	RegisterCondition(ConditionDef{
		Name:        ConditionIsMaterialized,
		Description: "Select models that are not ephemeral.",
		Build: func(options map[string]any) (Condition, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return isMaterializedCondition{}, nil
		},
	})
	RegisterCondition(ConditionDef{
		Name:        ConditionIsEnabled,
		Description: "Select resources that are enabled.",
		Build: func(options map[string]any) (Condition, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return isEnabledCondition{}, nil
		},
	})
}

type nameCondition struct {
	patterns PatternMatcher
}

func (nameCondition) Name() string { return ConditionName }

func (c *nameCondition) Check(item artifact.Resource) bool {
	return c.patterns.Match(item.GetName())
}

type pathCondition struct {
	patterns PatternMatcher
}

func (pathCondition) Name() string { return ConditionPath }

// Check matches the resource's paths: its project path, its file path
// and, when present, its properties file path without the scheme. An
// exclusion hitting any of the paths takes the resource out of scope;
// otherwise the resource is in scope when any path matches.
func (c *pathCondition) Check(item artifact.Resource) bool {
	node, ok := item.(artifact.Node)
	if !ok {
		return false
	}

	paths := []string{node.GetOriginalFilePath(), node.GetPath()}
	if raw := node.GetPatchPath(); raw != "" {
		if _, path, found := strings.Cut(raw, "://"); found {
			paths = append(paths, path)
		} else {
			paths = append(paths, raw)
		}
	}

	for _, path := range paths {
		if c.patterns.Excluded(path) {
			return false
		}
	}
	for _, path := range paths {
		if c.patterns.Match(path) {
			return true
		}
	}
	return false
}

type tagCondition struct {
	tags []string
}

func (tagCondition) Name() string { return ConditionTag }

func (c *tagCondition) Check(item artifact.Resource) bool {
	if len(c.tags) == 0 {
		return true
	}

	tagged, ok := item.(interface{ GetTags() []string })
	if !ok {
		return false
	}
	for _, tag := range tagged.GetTags() {
		for _, allowed := range c.tags {
			if tag == allowed {
				return true
			}
		}
	}
	return false
}

type metaCondition struct {
	meta map[string][]string
}

func (metaCondition) Name() string { return ConditionMeta }

func (c *metaCondition) Check(item artifact.Resource) bool {
	if len(c.meta) == 0 {
		return true
	}

	carrier, ok := item.(interface{ GetMeta() map[string]any })
	if !ok {
		return false
	}
	meta := carrier.GetMeta()

	for key, allowed := range c.meta {
		val, ok := meta[key]
		if !ok || !containsString(allowed, stringify(val)) {
			return false
		}
	}
	return true
}

type isMaterializedCondition struct{}

func (isMaterializedCondition) Name() string { return ConditionIsMaterialized }

func (isMaterializedCondition) Check(item artifact.Resource) bool {
	model, ok := item.(*artifact.Model)
	if !ok {
		return false
	}
	return model.Config.Materialized != "ephemeral"
}

type isEnabledCondition struct{}

func (isEnabledCondition) Name() string { return ConditionIsEnabled }

func (isEnabledCondition) Check(item artifact.Resource) bool {
	switch v := item.(type) {
	case *artifact.Model:
		return v.Config.IsEnabled()
	case *artifact.Source:
		return v.Config.IsEnabled()
	default:
		return true
	}
}
