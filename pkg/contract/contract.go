package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// Contract keys accepted in configuration files, normalised.
const (
	KeyModels    = "models"
	KeySources   = "sources"
	KeyMacros    = "macros"
	KeyColumns   = "columns"
	KeyArguments = "arguments"
)

// RuleConfig is one entry of a filter or terms list: a bare name, or a
// single-key mapping from the name to its options.
type RuleConfig struct {
	Name    string
	Options map[string]any
}

// ParseRuleList normalises a filter or terms list from raw YAML/JSON
// decoding. Each element is either a string or a single-key mapping.
func ParseRuleList(raw any) ([]RuleConfig, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}

	rules := make([]RuleConfig, 0, len(list))
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			rules = append(rules, RuleConfig{Name: v})
		case map[string]any:
			if len(v) != 1 {
				return nil, fmt.Errorf("rule mappings must hold exactly one key, got %d", len(v))
			}
			for name, options := range v {
				opts, ok := options.(map[string]any)
				if options != nil && !ok {
					return nil, fmt.Errorf("options for %q must be a mapping, got %T", name, options)
				}
				rules = append(rules, RuleConfig{Name: name, Options: opts})
			}
		default:
			return nil, fmt.Errorf("rule entries must be names or single-key mappings, got %T", entry)
		}
	}
	return rules, nil
}

// NormalizeKey maps a user-provided contract key onto its canonical
// pluralised form: "Model", "models" and "model s" all become "models".
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.ReplaceAll(key, " ", "_"))
	return strings.TrimRight(key, "s") + "s"
}

// support is the set of condition and term names a contract accepts.
type support struct {
	conditions map[string]bool
	terms      map[string]bool
}

func newSupport(conditions, terms []string) support {
	s := support{conditions: map[string]bool{}, terms: map[string]bool{}}
	for _, name := range conditions {
		s.conditions[name] = true
	}
	for _, name := range terms {
		s.terms[name] = true
	}
	return s
}

func (s support) sortedConditions() []string {
	names := make([]string, 0, len(s.conditions))
	for name := range s.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s support) sortedTerms() []string {
	names := make([]string, 0, len(s.terms))
	for name := range s.terms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var genericTerms = []string{
	TermHasProperties,
	TermHasDescription,
	TermHasRequiredTags,
	TermHasAllowedTags,
	TermHasRequiredMetaKeys,
	TermHasAllowedMetaKeys,
	TermHasAllowedMetaValues,
}

var (
	modelSupport = newSupport(
		[]string{ConditionName, ConditionPath, ConditionTag, ConditionMeta, ConditionIsMaterialized},
		append([]string{
			TermExists,
			TermHasTests,
			TermHasAllColumns,
			TermHasExpectedColumns,
			TermHasMatchingDescription,
			TermHasContract,
			TermHasConstraints,
			TermHasValidRefDependencies,
			TermHasValidSourceDependencies,
			TermHasValidMacroDependencies,
			TermHasNoFinalSemiColon,
			TermHasNoHardcodedRefs,
		}, genericTerms...),
	)
	sourceSupport = newSupport(
		[]string{ConditionName, ConditionPath, ConditionTag, ConditionMeta, ConditionIsEnabled},
		append([]string{
			TermExists,
			TermHasTests,
			TermHasAllColumns,
			TermHasExpectedColumns,
			TermHasMatchingDescription,
			TermHasLoader,
			TermHasFreshness,
			TermHasDownstreamDependencies,
		}, genericTerms...),
	)
	macroSupport = newSupport(
		[]string{ConditionName, ConditionPath},
		[]string{TermHasProperties, TermHasDescription},
	)
	columnSupport = newSupport(
		[]string{ConditionName, ConditionTag, ConditionMeta},
		append([]string{
			TermExists,
			TermHasTests,
			TermHasExpectedName,
			TermHasDataType,
			TermHasMatchingDescription,
			TermHasMatchingDataType,
			TermHasMatchingIndex,
		}, genericTerms...),
	)
	argumentSupport = newSupport(
		[]string{ConditionName},
		[]string{TermHasDescription, TermHasType},
	)
)

// SupportedRules returns the condition and term names a contract key
// supports, e.g. "models", "models.columns" or "macros.arguments".
func SupportedRules(key string) (conditions, terms []string, err error) {
	parentKey, childKey, hasChild := strings.Cut(key, ".")

	var sup support
	switch parent := NormalizeKey(parentKey); parent {
	case KeyModels:
		sup = modelSupport
	case KeySources:
		sup = sourceSupport
	case KeyMacros:
		sup = macroSupport
	default:
		return nil, nil, fmt.Errorf("unknown contract key %q", key)
	}

	if hasChild {
		switch child := NormalizeKey(childKey); {
		case child == KeyColumns && NormalizeKey(parentKey) != KeyMacros:
			sup = columnSupport
		case child == KeyArguments && NormalizeKey(parentKey) == KeyMacros:
			sup = argumentSupport
		default:
			return nil, nil, fmt.Errorf("unknown contract key %q", key)
		}
	}

	return sup.sortedConditions(), sup.sortedTerms(), nil
}

// ChildItem pairs a child resource with the parent node it belongs to.
type ChildItem struct {
	Item   artifact.Resource
	Parent artifact.Node
}

// ParentContract binds conditions and terms to one top-level resource
// type. It may carry a child contract whose items derive from this
// contract's filtered items.
type ParentContract struct {
	key        string
	resource   artifact.ResourceType
	conditions []Condition
	terms      []Term
	child      *ChildContract
}

// ChildContract validates resources nested inside a parent: columns of
// models and sources, arguments of macros.
type ChildContract struct {
	key        string
	conditions []Condition
	terms      []Term
}

// NewContract builds a contract from one entry of the declarative
// configuration. The key selects the resource type and is normalised
// first; configured condition and term names are checked against the
// contract's supported sets before being instantiated.
func NewContract(key string, config map[string]any) (*ParentContract, error) {
	normalized := NormalizeKey(key)

	var (
		contract *ParentContract
		childKey string
		childSup support
	)
	switch normalized {
	case KeyModels:
		contract = &ParentContract{key: KeyModels, resource: artifact.TypeModel}
		childKey, childSup = KeyColumns, columnSupport
	case KeySources:
		contract = &ParentContract{key: KeySources, resource: artifact.TypeSource}
		childKey, childSup = KeyColumns, columnSupport
	case KeyMacros:
		contract = &ParentContract{key: KeyMacros, resource: artifact.TypeMacro}
		childKey, childSup = KeyArguments, argumentSupport
	default:
		return nil, fmt.Errorf("unrecognised contract key %q", key)
	}

	sup := contract.supports()
	var err error
	contract.conditions, contract.terms, err = buildRules(config, sup)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", contract.key, err)
	}

	if rawChild, ok := config[childKey]; ok {
		childConfig, ok := rawChild.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s.%s: expected a mapping, got %T", contract.key, childKey, rawChild)
		}
		child := &ChildContract{key: childKey}
		child.conditions, child.terms, err = buildRules(childConfig, childSup)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", contract.key, childKey, err)
		}
		contract.child = child
	}

	return contract, nil
}

// buildRules instantiates the "filter" and "terms" (alias "enforce")
// lists of a contract config against a supported-name set.
func buildRules(config map[string]any, sup support) ([]Condition, []Term, error) {
	ruleLists, err := ParseRuleList(config["filter"])
	if err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}

	var conditions []Condition
	for _, rule := range ruleLists {
		if !sup.conditions[rule.Name] {
			return nil, nil, fmt.Errorf(
				"unsupported condition %q. Choose from: %s",
				rule.Name, strings.Join(sup.sortedConditions(), ", "),
			)
		}
		condition, err := NewCondition(rule.Name, rule.Options)
		if err != nil {
			return nil, nil, err
		}
		conditions = append(conditions, condition)
	}

	rawTerms, ok := config["terms"]
	if !ok {
		rawTerms = config["enforce"]
	}
	termList, err := ParseRuleList(rawTerms)
	if err != nil {
		return nil, nil, fmt.Errorf("terms: %w", err)
	}

	var terms []Term
	for _, rule := range termList {
		if !sup.terms[rule.Name] {
			return nil, nil, fmt.Errorf(
				"unsupported term %q. Choose from: %s",
				rule.Name, strings.Join(sup.sortedTerms(), ", "),
			)
		}
		term, err := NewTerm(rule.Name, rule.Options)
		if err != nil {
			return nil, nil, err
		}
		terms = append(terms, term)
	}

	return conditions, terms, nil
}

// Key returns the normalised configuration key of the contract.
func (p *ParentContract) Key() string { return p.key }

// Resource returns the resource type the contract is bound to.
func (p *ParentContract) Resource() artifact.ResourceType { return p.resource }

// Child returns the nested child contract, or nil when none is
// configured.
func (p *ParentContract) Child() *ChildContract { return p.child }

// Terms returns the configured terms in order.
func (p *ParentContract) Terms() []Term { return p.terms }

// Conditions returns the configured conditions in order.
func (p *ParentContract) Conditions() []Condition { return p.conditions }

func (p *ParentContract) supports() support {
	switch p.resource {
	case artifact.TypeModel:
		return modelSupport
	case artifact.TypeSource:
		return sourceSupport
	default:
		return macroSupport
	}
}

// Items yields every resource of the bound type from the manifest.
// Macros are limited to the ones defined by the project itself, not
// those pulled in from installed packages.
func (p *ParentContract) Items(manifest *artifact.Manifest) []artifact.Node {
	if manifest == nil {
		return nil
	}

	var items []artifact.Node
	switch p.resource {
	case artifact.TypeModel:
		for _, model := range manifest.SortedModels() {
			items = append(items, model)
		}
	case artifact.TypeSource:
		for _, source := range manifest.SortedSources() {
			items = append(items, source)
		}
	case artifact.TypeMacro:
		for _, macro := range manifest.SortedMacros() {
			if macro.PackageName == manifest.Metadata.ProjectName {
				items = append(items, macro)
			}
		}
	}
	return items
}

// FilteredItems returns the items passing every configured condition.
func (p *ParentContract) FilteredItems(manifest *artifact.Manifest) []artifact.Node {
	var filtered []artifact.Node
	for _, item := range p.Items(manifest) {
		if checkConditions(p.conditions, item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Validate runs the contract's terms over its filtered items and
// returns the items for which every term passed. With no terms
// configured all filtered items are valid. Validation is fatal before
// any term runs when a term requires an artifact the context does not
// hold. When a child contract is configured it runs over the children
// of the filtered items, regardless of how the parents fared against
// the parent terms.
func (p *ParentContract) Validate(ctx *Context) ([]artifact.Node, error) {
	return p.ValidateTerms(ctx, nil)
}

// ValidateTerms is Validate narrowed to the terms named in only. An
// empty only runs every term. When a narrowing is given the child
// contract is skipped; select it explicitly to narrow its terms.
func (p *ParentContract) ValidateTerms(ctx *Context, only []string) ([]artifact.Node, error) {
	terms := selectTerms(p.terms, only)
	runChild := p.child != nil && len(only) == 0

	if err := requireArtifacts(p.key, terms, ctx); err != nil {
		return nil, err
	}
	if runChild {
		if err := requireArtifacts(p.key+"."+p.child.key, p.child.terms, ctx); err != nil {
			return nil, err
		}
	}

	filtered := p.FilteredItems(ctx.Manifest)

	var valid []artifact.Node
	for _, item := range filtered {
		passed := true
		for _, term := range terms {
			if !term.Run(item, nil, ctx) {
				passed = false
			}
		}
		if passed {
			valid = append(valid, item)
		}
	}

	if runChild {
		p.child.validate(filtered, ctx, nil)
	}
	return valid, nil
}

// Key returns the configuration key of the child contract.
func (c *ChildContract) Key() string { return c.key }

// Terms returns the configured terms in order.
func (c *ChildContract) Terms() []Term { return c.terms }

// Items yields the child resources of the given parents paired with
// their parent.
func (c *ChildContract) Items(parents []artifact.Node) []ChildItem {
	var items []ChildItem
	for _, parent := range parents {
		switch v := parent.(type) {
		case artifact.TableNode:
			for _, col := range v.GetColumns() {
				items = append(items, ChildItem{Item: col, Parent: v})
			}
		case *artifact.Macro:
			for _, arg := range v.Arguments {
				items = append(items, ChildItem{Item: arg, Parent: v})
			}
		}
	}
	return items
}

// FilteredItems returns the child items passing every configured
// condition. Conditions apply to the child, not its parent.
func (c *ChildContract) FilteredItems(parents []artifact.Node) []ChildItem {
	var filtered []ChildItem
	for _, pair := range c.Items(parents) {
		if checkConditions(c.conditions, pair.Item) {
			filtered = append(filtered, pair)
		}
	}
	return filtered
}

// Validate runs the child terms over the children of the given parents
// and returns the pairs for which every term passed.
func (c *ChildContract) Validate(parents []artifact.Node, ctx *Context) ([]ChildItem, error) {
	return c.ValidateTerms(parents, ctx, nil)
}

// ValidateTerms is Validate narrowed to the terms named in only. An
// empty only runs every term.
func (c *ChildContract) ValidateTerms(parents []artifact.Node, ctx *Context, only []string) ([]ChildItem, error) {
	terms := selectTerms(c.terms, only)
	if err := requireArtifacts(c.key, terms, ctx); err != nil {
		return nil, err
	}
	return c.validate(parents, ctx, only), nil
}

func (c *ChildContract) validate(parents []artifact.Node, ctx *Context, only []string) []ChildItem {
	terms := selectTerms(c.terms, only)

	var valid []ChildItem
	for _, pair := range c.FilteredItems(parents) {
		passed := true
		for _, term := range terms {
			if !term.Run(pair.Item, pair.Parent, ctx) {
				passed = false
			}
		}
		if passed {
			valid = append(valid, pair)
		}
	}
	return valid
}

// selectTerms returns the terms whose names appear in only. An empty
// only keeps every term.
func selectTerms(terms []Term, only []string) []Term {
	if len(only) == 0 {
		return terms
	}
	keep := make(map[string]bool, len(only))
	for _, name := range only {
		keep[name] = true
	}
	var selected []Term
	for _, term := range terms {
		if keep[term.Name()] {
			selected = append(selected, term)
		}
	}
	return selected
}

func checkConditions(conditions []Condition, item artifact.Resource) bool {
	for _, condition := range conditions {
		if !condition.Check(item) {
			return false
		}
	}
	return true
}

// requireArtifacts fails when any term needs an artifact the context
// does not hold. The check runs before any term so a misconfigured run
// produces no partial results.
func requireArtifacts(key string, terms []Term, ctx *Context) error {
	for _, term := range terms {
		if term.NeedsManifest() && ctx.Manifest == nil {
			return fmt.Errorf("%s: term %s requires a manifest but none is loaded", key, term.Name())
		}
		if term.NeedsCatalog() && ctx.Catalog == nil {
			return fmt.Errorf("%s: term %s requires a catalog but none is loaded", key, term.Name())
		}
	}
	return nil
}
