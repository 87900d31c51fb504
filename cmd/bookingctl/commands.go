package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/booking"
	"github.com/iliyamo/consultation-booking/internal/database"
	"github.com/iliyamo/consultation-booking/internal/identity"
	"github.com/iliyamo/consultation-booking/internal/lock"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/notify"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

func runMigrate(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	status := fs.Bool("status", false, "print the schema version without migrating")
	if err := parseFlags(fs, args, e.out); err != nil {
		return ignoreHelp(err)
	}

	m, err := database.NewMigrator(e.db, e.cfg.DBDriver)
	if err != nil {
		return err
	}
	if !*status {
		n, err := m.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "applied %d migration(s)\n", n)
	}
	v, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "schema version %d\n", v)
	return nil
}

func runPurge(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("purge-orphans", pflag.ContinueOnError)
	as := fs.String("as", "", "email of the administrator performing the purge (required)")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := parseFlags(fs, args, e.out); err != nil {
		return ignoreHelp(err)
	}
	if *as == "" {
		return errors.New("--as is required")
	}

	u, err := repository.NewUserRepo(e.db).GetByEmail(ctx, *as)
	if err != nil {
		return fmt.Errorf("look up %s: %w", *as, err)
	}
	report, err := newEngine(e).PurgeOrphans(ctx, model.IdentityOf(u))
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESERVATION\tMISSING\tRESULT")
	for _, r := range report.Results {
		result := "deleted"
		if !r.Deleted {
			result = "failed: " + r.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ReservationID, strings.Join(r.Missing, ","), result)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%d orphan(s), %d deleted, %d failed\n", report.Orphans, report.Deleted, report.Failed)
	return nil
}

func runOccupancy(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("occupancy", pflag.ContinueOnError)
	slot := fs.Uint64("slot", 0, "schedule slot id (required)")
	if err := parseFlags(fs, args, e.out); err != nil {
		return ignoreHelp(err)
	}
	if *slot == 0 {
		return errors.New("--slot is required")
	}
	occ, err := newEngine(e).GetOccupancy(ctx, *slot)
	if err != nil {
		return err
	}
	full := ""
	if occ.IsFullyBooked {
		full = " (fully booked)"
	}
	fmt.Fprintf(e.out, "slot %d: %d/%d booked, %d remaining%s\n", occ.SlotID, occ.Count, occ.MaxSlots, occ.Remaining, full)
	return nil
}

func runToken(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	email := fs.String("email", "", "email of the user to sign for")
	userID := fs.Uint64("user", 0, "id of the user to sign for")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := parseFlags(fs, args, e.out); err != nil {
		return ignoreHelp(err)
	}
	if e.cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	users := repository.NewUserRepo(e.db)
	var (
		u   model.User
		err error
	)
	switch {
	case *email != "":
		u, err = users.GetByEmail(ctx, *email)
	case *userID != 0:
		u, err = users.GetByID(ctx, *userID)
	default:
		return errors.New("one of --email or --user is required")
	}
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if !u.IsActive {
		return fmt.Errorf("user %d is disabled", u.ID)
	}
	tok, err := identity.SignToken(e.cfg.JWTSecret, u, *ttl)
	if err != nil {
		return err
	}
	e.logger.Info("Signed token", zap.Uint64("user_id", u.ID), zap.String("role", string(u.Role)), zap.Time("expires_at", tok.Exp))
	fmt.Fprintln(e.out, tok.Token)
	return nil
}

func newEngine(e *env) *booking.Engine {
	dispatcher := notify.NewDispatcher(notify.LogNotifier{Logger: e.logger}, time.Second, e.logger)
	return booking.New(e.db, e.cfg.DBDriver, lock.NewLocal(), dispatcher, e.logger)
}

func ignoreHelp(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}
