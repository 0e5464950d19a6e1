// Package bitset provides the growable bit vector behind validity and
// null tracking.
//
// Architecture:
//   - Segmented design: 8KB segments (1024 uint64 words = 65536 bits each)
//   - Segment directory published through atomic.Pointer; existing segments
//     are never moved, so readers holding an old directory stay valid
//   - Plain accessors (Get/Set/Clear) for callers that already serialize
//     writers, CAS accessors (SafeGet/SafeSet/SafeClear) for everyone else
//   - Growth guarded by a gate with a caller-chosen timeout
package bitset
