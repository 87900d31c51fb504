// Package testutil provides shared test helpers.
//
// [OpenStore] returns a migrated SQLite database in the test's temporary
// directory, so repository, catalog and booking tests exercise real SQL.
// [CreateUser] seeds the users table the identity directory reads from.
//
// [RequireReceive] encapsulates the timeout safety valve pattern (select
// with time.After fallback) for tests that wait on asynchronous work such
// as notifier dispatch.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
