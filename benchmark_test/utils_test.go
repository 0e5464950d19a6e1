package benchmark_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/hupe1980/coldb"
	"github.com/hupe1980/coldb/model"
	"github.com/hupe1980/coldb/testutil"
)

const (
	benchSeed     = 4711
	benchNullRate = 0.05
)

const (
	fieldID = iota
	fieldName
	fieldScore
	fieldAt
	fieldAmount
)

func benchSchema(b testing.TB) *model.Schema {
	b.Helper()
	s, err := model.NewSchema("bench",
		model.Field{ID: 1, Name: "id", Type: model.TypeInt64},
		model.Field{ID: 2, Name: "name", Type: model.TypeString},
		model.Field{ID: 3, Name: "score", Type: model.TypeFloat64},
		model.Field{ID: 4, Name: "at", Type: model.TypeDateTime},
		model.Field{ID: 5, Name: "amount", Type: model.TypeDecimal},
	)
	if err != nil {
		b.Fatal(err)
	}
	return s
}

// OpenBenchContainer opens a memory-only store with an empty bench container.
func OpenBenchContainer(b testing.TB, opts ...coldb.Option) (*coldb.Store, *coldb.Container) {
	b.Helper()
	db, err := coldb.Open(context.Background(), opts...)
	if err != nil {
		b.Fatal(err)
	}
	c, err := db.Documents(context.Background(), benchSchema(b))
	if err != nil {
		b.Fatal(err)
	}
	return db, c
}

// fill inserts n random documents with keys testutil.Key(0..n).
func fill(b testing.TB, c *coldb.Container, n int) {
	b.Helper()
	ctx := context.Background()
	rng := testutil.NewRNG(benchSeed)
	row := model.NewRowBuffer(c.Schema())
	cs, err := c.CreateChangeset(ctx, row, true)
	if err != nil {
		b.Fatal(err)
	}
	if err := cs.Reserve(n); err != nil {
		b.Fatal(err)
	}
	for i := range n {
		row.Reset()
		row.Change = model.ChangeInsert
		row.Key = testutil.Key(i)
		rng.FillRow(c.Schema(), row, benchNullRate)
		row.SetInt64(fieldID, int64(i))
		if err := cs.AddChange(); err != nil {
			b.Fatal(err)
		}
	}
	if _, err := cs.Apply(); err != nil {
		b.Fatal(err)
	}
}

func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return strconv.Itoa(n/1_000_000) + "M"
	case n >= 1_000:
		return strconv.Itoa(n/1_000) + "K"
	default:
		return strconv.Itoa(n)
	}
}
