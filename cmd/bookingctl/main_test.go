package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/database"
	"github.com/iliyamo/consultation-booking/internal/identity"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestBookingctl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("JWT_SECRET", "ctl-secret")

	out, err := runCmd(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema version 1") {
		t.Errorf("migrate: got %q", out)
	}
	if out, err := runCmd(t, "migrate", "--status"); err != nil || strings.Contains(out, "applied") {
		t.Errorf("migrate --status: got %q, %v", out, err)
	}

	db, err := database.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	users := repository.NewUserRepo(db)
	admin := model.User{Name: "Registrar", Email: "registrar@example.edu", Role: model.RoleAdmin, IsActive: true}
	if err := users.Create(context.Background(), &admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	db.Close()

	out, err = runCmd(t, "token", "--email", "registrar@example.edu", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	db, err = database.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, err := identity.NewJWTDirectory("ctl-secret", repository.NewUserRepo(db)).Resolve(context.Background(), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Resolve signed token: %v", err)
	}
	if id.ID != admin.ID || id.Role != model.RoleAdmin {
		t.Errorf("token identity: got %+v", id)
	}
	db.Close()

	if _, err := runCmd(t, "occupancy", "--slot", "99"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("occupancy of unknown slot: got %v, want not found", err)
	}
	out, err = runCmd(t, "purge-orphans", "--as", "registrar@example.edu")
	if err != nil {
		t.Fatalf("purge-orphans: %v", err)
	}
	if !strings.Contains(out, "0 orphan(s), 0 deleted, 0 failed") {
		t.Errorf("purge-orphans: got %q", out)
	}
}

func TestUsageAndFlagErrors(t *testing.T) {
	out, err := runCmd(t)
	if err != nil || !strings.Contains(out, "purge-orphans") {
		t.Errorf("usage: got %q, %v", out, err)
	}
	if _, err := runCmd(t, "frobnicate"); err == nil {
		t.Errorf("unknown command: want error")
	}
}
