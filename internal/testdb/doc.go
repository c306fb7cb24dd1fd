// Package testdb provides helpers for Postgres integration tests.
//
// Tests obtain a migrated connection with GetTestDBWithT and run their
// statements inside WithTx, whose transaction is always rolled back, so tests
// can run in parallel against one database without cleanup.
//
//	func TestPlanStore(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        plans := postgres.NewPostgresPlanStore(tx, nil)
//	        ...
//	    })
//	}
//
// The helpers are compiled only with the integration build tag. The database
// URL is read from DAYPLAN_TEST_DB_URL, then DATABASE_URL; when neither is set
// the test is skipped.
package testdb
