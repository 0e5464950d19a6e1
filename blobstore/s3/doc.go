// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("coldb/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	db, err := coldb.Open(ctx, schemas, coldb.WithBlobStore(store))
//
// # Features
//
//   - Range reads for column files opened lazily
//   - Multipart streaming uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
