// Package arena owns the memory behind column blocks.
//
// Column arrays never allocate directly; they borrow fixed-size blocks from
// an Arena. The arena charges every block against an optional memory budget
// and releases the whole budget at once when it is freed, which is how a
// container migrates to fresh storage during compaction: build into a new
// arena, swap, free the old one.
//
// # Features
//
//   - Budget accounting through MemoryAcquirer
//   - Generation tracking so stale owners can detect a freed arena
//   - Allocation statistics for container stats and the CLI
package arena
