// Package coldb provides an embedded, columnar, in-memory document store.
//
// Documents of one document type live in a Container: one column per
// schema field, a primary key index, and a validity vector marking live
// slots. Deleted documents leave tombstones that keep their slot and key,
// so inserting the key again revives the same slot. Sort indexes are
// rebuilt lazily after writes invalidate them.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := coldb.Open(ctx, coldb.WithDirectory("./data"))
//	defer db.Close()
//
//	schema, _ := model.NewSchema("orders",
//	    model.Field{ID: 1, Name: "total", Type: model.TypeInt64},
//	    model.Field{ID: 2, Name: "customer", Type: model.TypeString},
//	)
//	orders, _ := db.Documents(ctx, schema)
//
// # Writing
//
// Writes go through changesets. A RowBuffer stages one row at a time; each
// AddChange writes it through immediately:
//
//	row := model.NewRowBuffer(schema)
//	cs, _ := orders.CreateChangeset(ctx, row, false)
//	row.Change = model.ChangeInsert
//	row.Key = []byte("o-1")
//	row.SetInt64(0, 42)
//	row.SetString(1, "ada")
//	_ = cs.AddChange()
//	n, _ := cs.Apply()
//
// Discard closes a changeset without undoing the changes already added.
//
// # Reading
//
// Enumerators are iterators over slots; ReadRow copies a slot into a row
// buffer:
//
//	for slot, err := range orders.ScanSorted(ctx, 0, true) {
//	    if err != nil {
//	        return err
//	    }
//	    _, _ = orders.ReadRow(ctx, slot, row)
//	}
//
// # Durability
//
// The store is memory-first. Flush writes every container to the blob
// store (local directory, S3 or MinIO); Open reads the root descriptor and
// containers load lazily, column by column, on first use.
//
//	db.Flush(ctx)
//
// A structural failure halfway through an operation puts the container
// into a sticky broken state; every later call returns ErrBroken.
package coldb
