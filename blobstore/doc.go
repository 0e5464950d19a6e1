// Package blobstore provides the storage targets coldb persists to.
//
// A store is a flat namespace of named blobs. Names use forward slashes
// ("people/age-1-i64.fdata"); a store maps them onto directories, object
// keys or map entries.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, atomic writes via rename, mmap reads
//   - MemoryStore: in-process map, for tests and ephemeral stores
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
