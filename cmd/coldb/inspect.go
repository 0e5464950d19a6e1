package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/coldb/internal/persist"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Short:   "Print the document types of a persisted store",
	PreRunE: bindFlags,
	RunE:    runInspect,
}

func init() {
	addStoreFlags(inspectCmd)
	inspectCmd.Flags().Bool("fields", false, "list the fields of every document type")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openBlobStore(ctx)
	if err != nil {
		return err
	}
	dir := persist.NewDir(store)
	root, err := dir.ReadRoot(ctx)
	if err != nil {
		return err
	}
	showFields, _ := cmd.Flags().GetBool("fields")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "format v%d, written %s\n\n", root.FormatVersion, humanize.Time(root.CreatedAt))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSLOTS\tLIVE\tFIELDS\tCODEC\tSIZE\tFLUSHED")
	for _, name := range root.DocumentTypes {
		d, err := dir.ReadDescriptor(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		size, err := dir.Size(ctx, name+"/")
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			name,
			humanize.Comma(int64(d.SlotCount)),
			humanize.Comma(int64(d.LiveCount)),
			len(d.Fields),
			d.Compression,
			humanize.Bytes(uint64(size)),
			humanize.Time(d.CreatedAt),
		)
		if showFields {
			for _, f := range d.Fields {
				fmt.Fprintf(w, "  %d\t%s\t%s\t\t\t\t\n", f.ID, f.Name, f.Type)
			}
		}
	}
	return w.Flush()
}
