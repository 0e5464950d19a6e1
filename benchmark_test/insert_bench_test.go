package benchmark_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/hupe1980/coldb/model"
	"github.com/hupe1980/coldb/testutil"
)

// ============================================================================
// Insert Benchmarks
// ============================================================================

// BenchmarkInsert measures changeset insert throughput.
// Reports: ns/op, allocs, and docs/sec.
func BenchmarkInsert(b *testing.B) {
	for _, bulk := range []bool{false, true} {
		b.Run("bulk="+strconv.FormatBool(bulk), func(b *testing.B) {
			db, c := OpenBenchContainer(b)
			defer db.Close()

			rng := testutil.NewRNG(benchSeed)
			keys := testutil.Keys(b.N)
			row := model.NewRowBuffer(c.Schema())
			rng.FillRow(c.Schema(), row, benchNullRate)

			ctx := context.Background()
			cs, err := c.CreateChangeset(ctx, row, bulk)
			if err != nil {
				b.Fatal(err)
			}
			if bulk {
				if err := cs.Reserve(b.N); err != nil {
					b.Fatal(err)
				}
			}
			row.Change = model.ChangeInsert
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				row.Key = keys[i]
				if err := cs.AddChange(); err != nil {
					b.Fatal(err)
				}
			}

			b.StopTimer()
			if _, err := cs.Apply(); err != nil {
				b.Fatal(err)
			}
			b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "docs/sec")
		})
	}
}

// BenchmarkTryAddDocumentParallel measures concurrent slot allocation.
func BenchmarkTryAddDocumentParallel(b *testing.B) {
	db, c := OpenBenchContainer(b)
	defer db.Close()

	keys := testutil.Keys(b.N)
	var next atomicCounter
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.TryAddDocument(keys[next.inc()%len(keys)]); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkUpdateZipf measures updates of a skewed hot set.
func BenchmarkUpdateZipf(b *testing.B) {
	const docs = 10_000

	db, c := OpenBenchContainer(b)
	defer db.Close()
	fill(b, c, docs)

	rng := testutil.NewRNG(benchSeed)
	hot := rng.ZipfKeys(4096, 1000, 1.2)
	row := model.NewRowBuffer(c.Schema(), fieldScore)
	row.Change = model.ChangeUpdate
	row.SetFloat64(fieldScore, 1)

	ctx := context.Background()
	cs, err := c.CreateChangeset(ctx, row, false)
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = cs.Discard() }()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		row.Key = hot[i%len(hot)]
		if err := cs.AddChange(); err != nil {
			b.Fatal(err)
		}
	}
}
