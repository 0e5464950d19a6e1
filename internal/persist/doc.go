// Package persist defines the on-disk layout of a flushed store.
//
// Layout under a blob store:
//
//	coldb.json                              root descriptor
//	{doctype}/stats.json                    container descriptor
//	{doctype}/keys.fkey                     key backbone
//	{doctype}/validity.fvalid               validity bitmap
//	{doctype}/{field}-{id}-{tag}.fnn        column NotNulls bitmap
//	{doctype}/{field}-{id}-{tag}.fdata      column values
//
// Every binary file starts with a 24-byte header followed by the payload,
// which is optionally compressed as a single stream:
//
//	magic "CDB1" | version u16 | kind u8 | compression u8 | slot count u64 | reserved u64
//
// All integers are little-endian. Descriptors are JSON and carry the format
// version that Load checks against MinCompatibleVersion.
package persist
