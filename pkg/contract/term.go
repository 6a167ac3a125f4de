package contract

import (
	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// Term is one checkable rule bound to its configuration. Run validates
// the item and, on violation, records a Result on the context before
// returning false. Terms never raise for ordinary violations; only
// missing prerequisites (manifest or catalog absent for a term that
// declares it needs one) are fatal, and those are caught before any
// term runs.
type Term interface {
	// Name returns the registry key of the term, which is also the rule
	// name recorded on its results.
	Name() string
	// NeedsManifest reports whether the term reads the manifest beyond
	// the item itself.
	NeedsManifest() bool
	// NeedsCatalog reports whether the term compares against the catalog.
	NeedsCatalog() bool
	// Run checks the item. Parent is nil for top-level resources.
	Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool
}

// Term registry keys.
const (
	TermHasProperties        = "has_properties"
	TermHasDescription       = "has_description"
	TermHasRequiredTags      = "has_required_tags"
	TermHasAllowedTags       = "has_allowed_tags"
	TermHasRequiredMetaKeys  = "has_required_meta_keys"
	TermHasAllowedMetaKeys   = "has_allowed_meta_keys"
	TermHasAllowedMetaValues = "has_allowed_meta_values"

	TermExists                     = "exists"
	TermHasTests                   = "has_tests"
	TermHasAllColumns              = "has_all_columns"
	TermHasExpectedColumns         = "has_expected_columns"
	TermHasMatchingDescription     = "has_matching_description"
	TermHasContract                = "has_contract"
	TermHasConstraints             = "has_constraints"
	TermHasValidRefDependencies    = "has_valid_ref_dependencies"
	TermHasValidSourceDependencies = "has_valid_source_dependencies"
	TermHasValidMacroDependencies  = "has_valid_macro_dependencies"
	TermHasNoFinalSemiColon        = "has_no_final_semi_colon"
	TermHasNoHardcodedRefs         = "has_no_hardcoded_refs"

	TermHasLoader                 = "has_loader"
	TermHasFreshness              = "has_freshness"
	TermHasDownstreamDependencies = "has_downstream_dependencies"

	TermHasExpectedName     = "has_expected_name"
	TermHasDataType         = "has_data_type"
	TermHasMatchingDataType = "has_matching_data_type"
	TermHasMatchingIndex    = "has_matching_index"

	TermHasType = "has_type"
)

// metadataTerm marks terms that only read the item and its parent.
type metadataTerm struct{}

func (metadataTerm) NeedsManifest() bool { return false }
func (metadataTerm) NeedsCatalog() bool  { return false }

// manifestTerm marks terms that read other manifest resources.
type manifestTerm struct{}

func (manifestTerm) NeedsManifest() bool { return true }
func (manifestTerm) NeedsCatalog() bool  { return false }

// catalogTerm marks terms that compare against the warehouse catalog.
type catalogTerm struct{}

func (catalogTerm) NeedsManifest() bool { return false }
func (catalogTerm) NeedsCatalog() bool  { return true }
