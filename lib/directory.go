package gantry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// usersSchema creates the directory's backing table. Applied on startup;
// idempotent by construction.
const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                BIGSERIAL PRIMARY KEY,
	external_id       TEXT NOT NULL UNIQUE,
	name              TEXT,
	email             TEXT,
	provider          TEXT,
	role              TEXT NOT NULL DEFAULT 'user',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_signed_in_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// gDirectory implements the Directory interface over the PostgreSQL handle.
// When the store is unreachable it degrades rather than failing: reads
// report absence, writes are dropped with a warning. Availability of the
// rest of the system wins over strict last-seen consistency.
type gDirectory struct {
	db  Database
	log Logger
}

// NewDirectory creates a Directory backed by the given database.
func NewDirectory(db Database) Directory {
	return &gDirectory{db: db, log: Log()}
}

// EnsureSchema creates the users table if it does not exist yet.
func (d *gDirectory) EnsureSchema(ctx context.Context) error {
	db, ok := d.db.Handle()
	if !ok {
		d.log.Warn("Skipping users schema setup, database unreachable")
		return nil
	}
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return NewError(KindDatabase, WithMessage("failed to ensure users schema"), WithCause(err))
	}
	return nil
}

// FindByExternalID looks up a user by identity-provider subject identifier.
func (d *gDirectory) FindByExternalID(ctx context.Context, externalID string) (*User, bool, error) {
	db, ok := d.db.Handle()
	if !ok {
		return nil, false, nil
	}

	var user User
	err := db.GetContext(ctx, &user, `SELECT * FROM users WHERE external_id = $1`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewError(KindDatabase, WithCause(err))
	}
	return &user, true, nil
}

// Upsert performs a single-statement create-or-update keyed on external_id.
// Only columns explicitly supplied in the UserUpsert appear in the conflict
// SET list, so concurrent requests cannot clobber fields they did not carry.
func (d *gDirectory) Upsert(ctx context.Context, up UserUpsert) error {
	if up.ExternalID == "" {
		return NewError(KindValidation, WithMessage("external identifier must not be empty"))
	}

	db, ok := d.db.Handle()
	if !ok {
		d.log.Warn("Dropping user upsert, database unreachable", zap.String("external_id", up.ExternalID))
		return nil
	}

	query, args := buildUserUpsert(up)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return NewError(KindDatabase, WithMessage("failed to upsert user"), WithCause(err))
	}
	return nil
}

// Touch advances last_signed_in_at for a known user. The cheap refresh path:
// no profile columns are written, so nothing set earlier can be overwritten.
func (d *gDirectory) Touch(ctx context.Context, externalID string) error {
	if externalID == "" {
		return NewError(KindValidation, WithMessage("external identifier must not be empty"))
	}

	db, ok := d.db.Handle()
	if !ok {
		d.log.Warn("Dropping last-seen update, database unreachable", zap.String("external_id", externalID))
		return nil
	}

	_, err := db.ExecContext(ctx,
		`UPDATE users SET last_signed_in_at = now(), updated_at = now() WHERE external_id = $1`,
		externalID)
	if err != nil {
		return NewError(KindDatabase, WithMessage("failed to update last-seen timestamp"), WithCause(err))
	}
	return nil
}

// List returns all known users, newest first.
func (d *gDirectory) List(ctx context.Context) ([]User, error) {
	db, ok := d.db.Handle()
	if !ok {
		return nil, NewError(KindServiceUnavailable, WithMessage("user store is unreachable"))
	}

	var users []User
	if err := db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at DESC`); err != nil {
		return nil, NewError(KindDatabase, WithCause(err))
	}
	return users, nil
}

// SetRole changes a user's role.
func (d *gDirectory) SetRole(ctx context.Context, externalID, role string) error {
	if role != RoleUser && role != RoleAdmin {
		return NewError(KindValidation,
			WithMessage(fmt.Sprintf("unknown role %q", role)),
			WithDetails(map[string]any{"role": "must be one of: user admin"}))
	}

	db, ok := d.db.Handle()
	if !ok {
		return NewError(KindServiceUnavailable, WithMessage("user store is unreachable"))
	}

	res, err := db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE external_id = $1`,
		externalID, role)
	if err != nil {
		return NewError(KindDatabase, WithCause(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewError(KindNotFound, WithMessage("no user with that external identifier"))
	}
	return nil
}

// buildUserUpsert assembles the INSERT ... ON CONFLICT statement for a
// partial update. Absent fields (nil pointers) stay out of the statement
// entirely; supplied empty strings clear the column to NULL. A call carrying
// nothing but the identifier still stamps last_signed_in_at so the record's
// freshness always advances.
func buildUserUpsert(up UserUpsert) (string, []any) {
	cols := []string{"external_id"}
	args := []any{up.ExternalID}

	addCol := func(name string, value any) {
		cols = append(cols, name)
		args = append(args, value)
	}

	if up.Name != nil {
		addCol("name", nullableText(*up.Name))
	}
	if up.Email != nil {
		addCol("email", nullableText(*up.Email))
	}
	if up.Provider != nil {
		addCol("provider", nullableText(*up.Provider))
	}
	if up.Role != nil {
		addCol("role", *up.Role)
	}

	stampFreshness := up.LastSignedInAt == nil && len(cols) == 1
	if up.LastSignedInAt != nil {
		addCol("last_signed_in_at", up.LastSignedInAt.UTC())
	} else if stampFreshness {
		addCol("last_signed_in_at", time.Now().UTC())
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	// Everything after external_id lands in the conflict SET list.
	sets := make([]string, 0, len(cols))
	for _, col := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(
		`INSERT INTO users (%s) VALUES (%s) ON CONFLICT (external_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)
	return query, args
}

// nullableText maps an empty string to SQL NULL so "clear this column" is
// representable.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
