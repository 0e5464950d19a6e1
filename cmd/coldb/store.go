package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/coldb"
	"github.com/hupe1980/coldb/blobstore"
	"github.com/hupe1980/coldb/blobstore/minio"
	"github.com/hupe1980/coldb/blobstore/s3"
	"github.com/hupe1980/coldb/internal/persist"
	"github.com/hupe1980/coldb/model"
)

// addStoreFlags adds the flags selecting a persisted store.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "local", "blob store backend (local, s3, minio)")
	cmd.Flags().String("dir", "", "store directory for the local backend")
	cmd.Flags().String("bucket", "", "bucket for the s3 and minio backends")
	cmd.Flags().String("prefix", "", "key prefix inside the bucket")
	cmd.Flags().String("region", "", "bucket region")
	cmd.Flags().String("endpoint", "", "minio endpoint, e.g. localhost:9000")
	cmd.Flags().String("access-key", "", "minio access key")
	cmd.Flags().String("secret-key", "", "minio secret key")
	cmd.Flags().Bool("secure", true, "use TLS for minio")
}

func openBlobStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch backend := viper.GetString("store"); backend {
	case "local":
		dir := viper.GetString("dir")
		if dir == "" {
			return nil, fmt.Errorf("--dir is required for the local store")
		}
		return blobstore.NewLocalStore(dir), nil
	case "s3":
		return s3.New(ctx, viper.GetString("bucket"),
			s3.WithPrefix(viper.GetString("prefix")),
			s3.WithRegion(viper.GetString("region")),
		)
	case "minio":
		return minio.Dial(ctx, minio.Config{
			Endpoint:  viper.GetString("endpoint"),
			AccessKey: viper.GetString("access-key"),
			SecretKey: viper.GetString("secret-key"),
			Region:    viper.GetString("region"),
			Secure:    viper.GetBool("secure"),
			Bucket:    viper.GetString("bucket"),
			Prefix:    viper.GetString("prefix"),
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// storeOptions translates the shared flags into store options.
func storeOptions() ([]coldb.Option, error) {
	c, err := coldb.ParseCompression(viper.GetString("compression"))
	if err != nil {
		return nil, err
	}
	return []coldb.Option{
		coldb.WithLogLevel(logLevel()),
		coldb.WithCompression(c),
		coldb.WithMemoryLimit(viper.GetInt64("memory-limit")),
		coldb.WithIOLimit(viper.GetInt64("io-limit")),
	}, nil
}

// schemaOf rebuilds a document type's schema from its descriptor.
func schemaOf(d *persist.Descriptor) (*model.Schema, error) {
	fields := make([]model.Field, 0, len(d.Fields))
	for _, fd := range d.Fields {
		f, err := fd.Field()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return model.NewSchema(d.DocumentType, fields...)
}
