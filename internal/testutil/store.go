package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/consultation-booking/internal/database"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// OpenStore opens a fresh SQLite database under t.TempDir() and applies
// all migrations.  The database is closed when the test completes.
func OpenStore(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var userSeq atomic.Int64

// CreateUser inserts an active user with a unique email and returns it.
func CreateUser(t testing.TB, db *sql.DB, role model.Role, name, section string) model.User {
	t.Helper()
	u := model.User{
		Name:     name,
		Email:    fmt.Sprintf("user%d@example.edu", userSeq.Add(1)),
		Role:     role,
		Section:  section,
		IsActive: true,
	}
	if err := repository.NewUserRepo(db).Create(context.Background(), &u); err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return u
}
