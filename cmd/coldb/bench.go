package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coldb"
	"github.com/hupe1980/coldb/blobstore"
	"github.com/hupe1980/coldb/model"
	"github.com/hupe1980/coldb/testutil"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	Short:   "Run a synthetic workload against an in-memory store",
	PreRunE: bindFlags,
	RunE:    runBench,
}

func init() {
	benchCmd.Flags().Int("docs", 100_000, "documents to insert")
	benchCmd.Flags().Int("workers", 4, "concurrent writers")
	benchCmd.Flags().Float64("null-rate", 0.1, "probability of a null field")
	benchCmd.Flags().Int64("seed", 1, "random seed")
	benchCmd.Flags().Bool("metrics", true, "print metrics in Prometheus text format")
}

const (
	benchID = iota
	benchName
	benchScore
	benchAt
	benchRef
	benchAmount
)

func benchSchema() (*model.Schema, error) {
	return model.NewSchema("bench",
		model.Field{ID: 1, Name: "id", Type: model.TypeInt64},
		model.Field{ID: 2, Name: "name", Type: model.TypeString},
		model.Field{ID: 3, Name: "score", Type: model.TypeFloat64},
		model.Field{ID: 4, Name: "at", Type: model.TypeDateTime},
		model.Field{ID: 5, Name: "ref", Type: model.TypeGuid},
		model.Field{ID: 6, Name: "amount", Type: model.TypeDecimal},
	)
}

// phase times fn and prints its throughput.
func phase(cmd *cobra.Command, name string, ops int, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	d := time.Since(start)
	rate := float64(ops) / d.Seconds()
	fmt.Fprintf(cmd.OutOrStdout(), "%-8s %12s ops %12s  %s ops/s\n",
		name, humanize.Comma(int64(ops)), d.Round(time.Microsecond), humanize.Comma(int64(rate)))
	return nil
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	docs := viper.GetInt("docs")
	workers := max(1, viper.GetInt("workers"))
	nullRate := viper.GetFloat64("null-rate")
	rng := testutil.NewRNG(viper.GetInt64("seed"))

	opts, err := storeOptions()
	if err != nil {
		return err
	}
	mem := blobstore.NewMemoryStore()
	mc := coldb.NewVictoriaMetricsCollector("coldb")
	db, err := coldb.Open(ctx, append(opts, coldb.WithBlobStore(mem), coldb.WithMetricsCollector(mc))...)
	if err != nil {
		return err
	}
	defer db.Close()

	schema, err := benchSchema()
	if err != nil {
		return err
	}
	c, err := db.Documents(ctx, schema)
	if err != nil {
		return err
	}

	// Writers insert disjoint key ranges.
	err = phase(cmd, "insert", docs, func() error {
		g, gctx := errgroup.WithContext(ctx)
		per := (docs + workers - 1) / workers
		for w := range workers {
			lo, hi := w*per, min(docs, (w+1)*per)
			g.Go(func() error {
				row := model.NewRowBuffer(schema)
				cs, err := c.CreateChangeset(gctx, row, true)
				if err != nil {
					return err
				}
				if err := cs.Reserve(hi - lo); err != nil {
					_ = cs.Discard()
					return err
				}
				for i := lo; i < hi; i++ {
					row.Reset()
					row.Change = model.ChangeInsert
					row.Key = testutil.Key(i)
					rng.FillRow(schema, row, nullRate)
					row.SetInt64(benchID, int64(i))
					if err := cs.AddChange(); err != nil {
						_ = cs.Discard()
						return err
					}
				}
				_, err = cs.Apply()
				return err
			})
		}
		return g.Wait()
	})
	if err != nil {
		return err
	}

	// Updates follow a Zipf distribution over the first keys.
	updates := docs / 2
	hot := rng.ZipfKeys(updates, min(docs, 1000), 1.2)
	err = phase(cmd, "update", updates, func() error {
		row := model.NewRowBuffer(schema, benchScore, benchName)
		cs, err := c.CreateChangeset(ctx, row, false)
		if err != nil {
			return err
		}
		for _, key := range hot {
			row.Reset()
			row.Change = model.ChangeUpdate
			row.Key = key
			rng.FillRow(schema, row, nullRate)
			if err := cs.AddChange(); err != nil {
				_ = cs.Discard()
				return err
			}
		}
		_, err = cs.Apply()
		return err
	})
	if err != nil {
		return err
	}

	deletes := docs / 10
	err = phase(cmd, "delete", deletes, func() error {
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for w := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := w; i < deletes; i += workers {
					if _, err := c.Delete(ctx, testutil.Key(i*10)); err != nil {
						errs <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		return <-errs
	})
	if err != nil {
		return err
	}

	for _, f := range []int{benchScore, benchName, benchAt, benchRef, benchAmount} {
		name := schema.Fields[f].Name
		live := c.Count()
		err = phase(cmd, "sort:"+name, live, func() error {
			for _, err := range c.ScanSorted(ctx, f, false) {
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := phase(cmd, "compact", c.SlotCount(), func() error { return db.Compact(ctx) }); err != nil {
		return err
	}
	if err := phase(cmd, "flush", c.SlotCount(), func() error { return db.Flush(ctx) }); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	st := db.Stats()
	fmt.Fprintf(out, "\nlive %s, memory %s, persisted %s (%s)\n",
		humanize.Comma(int64(c.Count())),
		humanize.Bytes(uint64(st.MemoryUsed)),
		humanize.Bytes(uint64(mem.Size())),
		viper.GetString("compression"),
	)
	if viper.GetBool("metrics") {
		fmt.Fprintln(out)
		mc.WritePrometheus(out)
	}
	return nil
}
