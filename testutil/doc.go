// Package testutil provides testing utilities for coldb.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic document keys, skewed key picks and random
// row values for any schema.
//
// # Keys
//
//	keys := testutil.Keys(1000)          // doc-00000000 ... doc-00000999
//	hot := rng.ZipfKeys(100, 1000, 1.5) // a few keys dominate
//
// # Rows
//
//	rng := testutil.NewRNG(seed)
//	row := model.NewRowBuffer(schema)
//	rng.FillRow(schema, row, 0.1) // roughly 10% nulls
package testutil
