// Package schema provides the record-types library consumed by the result
// set parser.
//
// A library is built from definition structs (decodable from CUE or YAML)
// and validated once at build time. The compiled descriptors form the
// read-only schema view the markup compiler and column handlers rely on:
// property kind (cardinality, value type, polymorphism), id properties,
// reference targets, subtype tables and map key rules.
//
// Invariants enforced by Build:
//   - every record type has exactly one id property, of string or number type
//   - an array of objects has an id property in its element schema
//   - a scalar or map object has no id property
//   - every reference target names an existing record type
//   - every map declaration resolves to exactly one key value type
//   - subtypes of a polymorphic collection agree on the anchor id property
package schema
