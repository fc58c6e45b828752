// Package parser implements the markup compiler and row-walk state machine
// that turn a flat relational result set into hierarchical records.
//
// ARCHITECTURE:
//
// Compile Once, Walk Branch-Light:
// Init compiles the columns markup against the record-types library into a
// fixed array of per-column handlers. Every dispatch decision - property
// kinds, polymorphic tiers, collection shapes, fetched references - is made
// at compile time; the row walk just advances a cursor through the handler
// array.
//
// Row Walk:
//  1. FeedRow assigns the row its number and honors the row skipper
//  2. The cursor starts at column 0 and asks each handler to execute
//  3. A handler consumes its cell and returns the next cursor position,
//     skipping over columns of absent subtrees and repeated referents
//  4. The row ends when the cursor passes the last column
//
// Anchors and the Collection Axis:
// Column 0 (the top record id) and every collection property are anchors.
// Each anchor links to at most one child anchor, forming the single
// collection axis of the markup. A changed anchor value bounds a subtree
// and resets every downstream handler; an unchanged one transfers the walk
// to the next anchor, which must change instead.
//
// Referred Records and Row Skipping:
// Fetched references materialize referred records into a deduplicating
// side table. The parser tracks how many rows each referent consumed the
// first time it was read through a column; later sightings skip the
// referent's columns and fast-forward whole repeated rows.
//
// The parser performs no I/O and runs strictly synchronously. Errors are
// returned as values in three classes: MarkupError (Init), DataError
// (FeedRow) and UsageError (API misuse). After a DataError the accumulated
// records are undefined until Reset.
package parser
