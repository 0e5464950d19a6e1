// Package model defines the types shared between coldb and the query engine
// that drives it.
//
// # Scalar Types
//
// Every field has a logical ScalarType. The type table maps each logical type
// to one of four storage categories, which decides how a column stores its
// values:
//
//   - CategoryFixed8: one uint64 per slot (integers, floats, bools, timestamps)
//   - CategoryFixed16: one Fixed16 per slot (decimals, GUIDs, timestamps with offset)
//   - CategoryChars: one string per slot
//   - CategoryBytes: one []byte per slot
//
// # Rows
//
// A RowBuffer is the staging area the query engine fills before handing it to
// a changeset, and the area enumerators copy column values into. Values are
// stored in per-category lanes indexed by field ordinal, so copying a value
// never boxes it:
//
//	buf := model.NewRowBuffer(schema)
//	buf.Change = model.ChangeInsert
//	buf.Key = []byte("user-1")
//	buf.SetInt64(0, 42)
//	buf.SetString(1, "Alice")
package model
