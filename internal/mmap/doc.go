// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps persisted column files instead of reading them
// through kernel buffers; a load then streams straight out of the mapping.
//
//	m, err := mmap.Open("people/age-1-i64.fdata")
//	if err != nil { ... }
//	defer m.Close()
//
//	m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) with madvise(2) hints; Windows uses
// CreateFileMapping/MapViewOfFile and ignores hints.
package mmap
