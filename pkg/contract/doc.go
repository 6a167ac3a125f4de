// Package contract implements governance contracts over dbt artifacts.
//
// A contract binds three things for one resource type (models, sources,
// macros, or their nested columns and arguments):
//
//   - conditions: filters selecting which items the contract applies to
//   - terms: rules every selected item must satisfy
//   - a context: the loaded artifacts plus the results accumulated while
//     terms run
//
// Conditions and terms are registered by name and built from plain
// configuration maps, so contract files can reference them as bare
// strings or as single-key maps carrying options. Failed terms record a
// Result carrying enough provenance (file, properties-file span, parent)
// to annotate the exact YAML block that violated the term.
package contract
