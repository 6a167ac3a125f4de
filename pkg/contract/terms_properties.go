package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

func init() {
	RegisterTerm(TermDef{
		Name:        TermHasProperties,
		Description: "Resource must be documented in a properties file.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasProperties{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasDescription,
		Description: "Item must have a non-empty description.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasDescription{}, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasRequiredTags,
		Description: "Item must carry every configured tag.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasRequiredTags{}
			if err := decodeOptions(options, &term.opts); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasAllowedTags,
		Description: "Item must only carry tags from the configured set.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasAllowedTags{}
			if err := decodeOptions(options, &term.opts); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasRequiredMetaKeys,
		Description: "Item meta must define every configured key.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasRequiredMetaKeys{}
			if err := decodeOptions(options, &term.opts); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasAllowedMetaKeys,
		Description: "Item meta must only use keys from the configured set.",
		Build: func(options map[string]any) (Term, error) {
			term := &hasAllowedMetaKeys{}
			if err := decodeOptions(options, &term.opts); err != nil {
				return nil, err
			}
			return term, nil
		},
	})
	RegisterTerm(TermDef{
		Name:        TermHasAllowedMetaValues,
		Description: "Configured meta keys must hold values from their allowed sets.",
		Build: func(options map[string]any) (Term, error) {
			var opts struct {
				Meta map[string]any `mapstructure:"meta"`
			}
			if err := decodeOptions(options, &opts); err != nil {
				return nil, err
			}
			return &hasAllowedMetaValues{meta: stringValues(opts.Meta)}, nil
		},
	})
}

type hasProperties struct{ metadataTerm }

func (hasProperties) Name() string { return TermHasProperties }

// Run passes sources through: a source is always defined in a properties
// file. Columns and arguments inherit their parent's properties file.
func (hasProperties) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	target := parent
	if target == nil {
		node, ok := item.(artifact.Node)
		if !ok {
			return true
		}
		target = node
	}

	if _, ok := target.(*artifact.Source); ok {
		return true
	}

	if target.GetPatchPath() == "" {
		ctx.AddResult(TermHasProperties, "No properties file found", item, parent)
		return false
	}
	return true
}

type hasDescription struct{ metadataTerm }

func (hasDescription) Name() string { return TermHasDescription }

func (hasDescription) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	described, ok := item.(interface{ GetDescription() string })
	if !ok || described.GetDescription() == "" {
		ctx.AddResult(TermHasDescription, "Missing description", item, parent)
		return false
	}
	return true
}

type tagOptions struct {
	Tags []string `mapstructure:"tags"`
}

func itemTags(item artifact.Resource) []string {
	if tagged, ok := item.(interface{ GetTags() []string }); ok {
		return tagged.GetTags()
	}
	return nil
}

type hasRequiredTags struct {
	metadataTerm
	opts tagOptions
}

func (hasRequiredTags) Name() string { return TermHasRequiredTags }

func (t *hasRequiredTags) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	tags := itemTags(item)

	var missing []string
	for _, required := range t.opts.Tags {
		if !containsString(tags, required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		message := fmt.Sprintf("Missing required tags: %s", strings.Join(missing, ", "))
		ctx.AddResult(TermHasRequiredTags, message, item, parent)
		return false
	}
	return true
}

type hasAllowedTags struct {
	metadataTerm
	opts tagOptions
}

func (hasAllowedTags) Name() string { return TermHasAllowedTags }

func (t *hasAllowedTags) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	var invalid []string
	for _, tag := range itemTags(item) {
		if !containsString(t.opts.Tags, tag) {
			invalid = append(invalid, tag)
		}
	}
	if len(invalid) > 0 {
		message := fmt.Sprintf("Contains invalid tags: %s", strings.Join(invalid, ", "))
		ctx.AddResult(TermHasAllowedTags, message, item, parent)
		return false
	}
	return true
}

type keyOptions struct {
	Keys []string `mapstructure:"keys"`
}

func itemMeta(item artifact.Resource) map[string]any {
	if carrier, ok := item.(interface{ GetMeta() map[string]any }); ok {
		return carrier.GetMeta()
	}
	return nil
}

type hasRequiredMetaKeys struct {
	metadataTerm
	opts keyOptions
}

func (hasRequiredMetaKeys) Name() string { return TermHasRequiredMetaKeys }

func (t *hasRequiredMetaKeys) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	meta := itemMeta(item)

	var missing []string
	for _, required := range t.opts.Keys {
		if _, ok := meta[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		message := fmt.Sprintf("Missing required keys: %s", strings.Join(missing, ", "))
		ctx.AddResult(TermHasRequiredMetaKeys, message, item, parent)
		return false
	}
	return true
}

type hasAllowedMetaKeys struct {
	metadataTerm
	opts keyOptions
}

func (hasAllowedMetaKeys) Name() string { return TermHasAllowedMetaKeys }

func (t *hasAllowedMetaKeys) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	var invalid []string
	for key := range itemMeta(item) {
		if !containsString(t.opts.Keys, key) {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		message := fmt.Sprintf("Contains invalid keys: %s", strings.Join(invalid, ", "))
		ctx.AddResult(TermHasAllowedMetaKeys, message, item, parent)
		return false
	}
	return true
}

type hasAllowedMetaValues struct {
	metadataTerm
	meta map[string][]string
}

func (hasAllowedMetaValues) Name() string { return TermHasAllowedMetaValues }

func (t *hasAllowedMetaValues) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	meta := itemMeta(item)

	invalid := map[string]string{}
	for key, allowed := range t.meta {
		val, ok := meta[key]
		if !ok {
			continue
		}
		if !containsString(allowed, stringify(val)) {
			invalid[key] = stringify(val)
		}
	}
	if len(invalid) > 0 {
		keys := make([]string, 0, len(invalid))
		for key := range invalid {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%s=%s (accepted: %s)", key, invalid[key], strings.Join(t.meta[key], ", "))
		}
		message := fmt.Sprintf("Contains invalid meta values: %s", strings.Join(parts, "; "))
		ctx.AddResult(TermHasAllowedMetaValues, message, item, parent)
		return false
	}
	return true
}
