package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/coldb"
	"github.com/hupe1980/coldb/internal/persist"
)

var compactCmd = &cobra.Command{
	Use:     "compact",
	Short:   "Drop tombstoned documents from a persisted store",
	Long:    "Loads every document type, renumbers the live documents densely and flushes the result.",
	PreRunE: bindFlags,
	RunE:    runCompact,
}

func init() {
	addStoreFlags(compactCmd)
}

func runCompact(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openBlobStore(ctx)
	if err != nil {
		return err
	}
	opts, err := storeOptions()
	if err != nil {
		return err
	}
	db, err := coldb.Open(ctx, append(opts, coldb.WithBlobStore(store), coldb.WithEagerLoad(true))...)
	if err != nil {
		return err
	}
	defer db.Close()

	dir := persist.NewDir(store)
	for _, name := range db.DocumentTypes() {
		d, err := dir.ReadDescriptor(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		schema, err := schemaOf(d)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, err := db.Documents(ctx, schema); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	before := db.Stats()
	if err := db.Compact(ctx); err != nil {
		return err
	}
	if err := db.Flush(ctx); err != nil {
		return err
	}
	after := db.Stats()

	out := cmd.OutOrStdout()
	for i, st := range after.Containers {
		fmt.Fprintf(out, "%s: %s -> %s slots, %s live\n",
			st.DocumentType,
			humanize.Comma(int64(before.Containers[i].Slots)),
			humanize.Comma(int64(st.Slots)),
			humanize.Comma(int64(st.Live)),
		)
	}
	fmt.Fprintf(out, "memory: %s -> %s\n",
		humanize.Bytes(uint64(before.MemoryUsed)),
		humanize.Bytes(uint64(after.MemoryUsed)),
	)
	return nil
}
