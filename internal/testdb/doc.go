//go:build integration

// Package testdb provides utilities for postgres integration tests.
//
// Tests either share one migrated database that is emptied by Truncate, or
// run inside a transaction that WithTx rolls back when the test completes,
// so that they can run in parallel without seeing each other's rows.
//
//	func TestMyFeature(t *testing.T) {
//	    db := testdb.Open(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        s := postgres.NewInvestmentStore(db, logger).WithTx(tx)
//	        ...
//	    })
//	}
package testdb
