// Package resource governs the memory, background concurrency and IO
// bandwidth a store may use.
//
//   - Memory: column blocks are charged against a budget through
//     AcquireMemory. The check is fail-fast; a full budget surfaces as
//     ErrMemoryLimitExceeded from the growth that needed the memory.
//   - Background workers: lazy column loads take a worker slot before
//     touching storage.
//   - IO: flush and load streams are wrapped in RateLimitedWriter and
//     RateLimitedReader.
//
// All methods are safe for concurrent use and treat a nil *Controller as
// "no limits".
package resource
