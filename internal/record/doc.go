// Package record provides the value tree produced by the result set parser.
//
// This package contains type definitions and serialization only. All other
// internal packages import record; record imports nothing internal. This
// ensures the value model remains the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Value is a sealed sum type: scalars, Ref, Null, Object, *List, Map
//   - Unset optional properties are absent from an Object, never Null
//   - Null appears only as an array element slot
//   - References are the canonical string "<RecordTypeName>#<id>"
//   - Canonical JSON (RFC 8785 key order, NFC strings) backs golden tests
//     and deterministic CLI output
package record
