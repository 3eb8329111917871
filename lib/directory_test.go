package gantry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

// downDatabase simulates an unreachable store.
type downDatabase struct{}

func (downDatabase) Handle() (*sqlx.DB, bool)   { return nil, false }
func (downDatabase) Ping(context.Context) error { return NewError(KindServiceUnavailable) }
func (downDatabase) Driver() string             { return "postgres" }

func strPtr(s string) *string { return &s }

func TestBuildUserUpsertIdentifierOnlyStampsFreshness(t *testing.T) {
	query, args := buildUserUpsert(UserUpsert{ExternalID: "ext-1"})

	if !strings.Contains(query, "INSERT INTO users (external_id, last_signed_in_at)") {
		t.Errorf("Expected identifier-only upsert to stamp last_signed_in_at, got '%s'", query)
	}
	if !strings.Contains(query, "ON CONFLICT (external_id) DO UPDATE SET") {
		t.Errorf("Expected an ON CONFLICT clause, got '%s'", query)
	}
	if len(args) != 2 {
		t.Fatalf("Expected 2 args, got %d", len(args))
	}
	if args[0] != "ext-1" {
		t.Errorf("Expected first arg 'ext-1', got %v", args[0])
	}
	if _, ok := args[1].(time.Time); !ok {
		t.Errorf("Expected a timestamp arg, got %T", args[1])
	}
}

func TestBuildUserUpsertOnlyWritesSuppliedColumns(t *testing.T) {
	query, args := buildUserUpsert(UserUpsert{
		ExternalID: "ext-1",
		Name:       strPtr("Jane"),
	})

	if !strings.Contains(query, "name = EXCLUDED.name") {
		t.Errorf("Expected name in the conflict SET list, got '%s'", query)
	}
	for _, absent := range []string{"email", "provider", "role", "last_signed_in_at"} {
		if strings.Contains(query, absent) {
			t.Errorf("Expected absent field '%s' to stay out of the statement, got '%s'", absent, query)
		}
	}
	if len(args) != 2 || args[1] != "Jane" {
		t.Errorf("Expected args [ext-1 Jane], got %v", args)
	}
}

func TestBuildUserUpsertEmptyStringClearsColumn(t *testing.T) {
	_, args := buildUserUpsert(UserUpsert{
		ExternalID: "ext-1",
		Email:      strPtr(""),
	})

	if len(args) != 2 {
		t.Fatalf("Expected 2 args, got %d", len(args))
	}
	if args[1] != nil {
		t.Errorf("Expected empty string to map to SQL NULL, got %v", args[1])
	}
}

func TestBuildUserUpsertExplicitLastSignedInAt(t *testing.T) {
	when := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	query, args := buildUserUpsert(UserUpsert{
		ExternalID:     "ext-1",
		LastSignedInAt: &when,
	})

	if !strings.Contains(query, "last_signed_in_at") {
		t.Errorf("Expected last_signed_in_at column, got '%s'", query)
	}
	if args[1] != when {
		t.Errorf("Expected the supplied timestamp, got %v", args[1])
	}
}

func TestBuildUserUpsertPlaceholdersMatchColumns(t *testing.T) {
	query, args := buildUserUpsert(UserUpsert{
		ExternalID: "ext-1",
		Name:       strPtr("Jane"),
		Email:      strPtr("jane@example.com"),
		Provider:   strPtr("google"),
		Role:       strPtr(RoleAdmin),
	})

	if len(args) != 5 {
		t.Fatalf("Expected 5 args, got %d", len(args))
	}
	for _, ph := range []string{"$1", "$2", "$3", "$4", "$5"} {
		if !strings.Contains(query, ph) {
			t.Errorf("Expected placeholder %s, got '%s'", ph, query)
		}
	}
	if strings.Contains(query, "$6") {
		t.Errorf("Expected no sixth placeholder, got '%s'", query)
	}
}

func TestUpsertRejectsEmptyExternalID(t *testing.T) {
	d := NewDirectory(downDatabase{})

	err := d.Upsert(context.Background(), UserUpsert{})
	appErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if appErr.Kind != KindValidation {
		t.Errorf("Expected kind VALIDATION_ERROR, got '%s'", appErr.Kind)
	}
}

func TestDirectoryDegradedReads(t *testing.T) {
	d := NewDirectory(downDatabase{})

	user, found, err := d.FindByExternalID(context.Background(), "ext-1")
	if err != nil {
		t.Errorf("Expected absence instead of an error, got %v", err)
	}
	if found || user != nil {
		t.Error("Expected no user while the store is unreachable")
	}
}

func TestDirectoryDegradedWritesAreDropped(t *testing.T) {
	d := NewDirectory(downDatabase{})

	if err := d.Upsert(context.Background(), UserUpsert{ExternalID: "ext-1"}); err != nil {
		t.Errorf("Expected dropped upsert to succeed, got %v", err)
	}
	if err := d.Touch(context.Background(), "ext-1"); err != nil {
		t.Errorf("Expected dropped touch to succeed, got %v", err)
	}
	if err := d.EnsureSchema(context.Background()); err != nil {
		t.Errorf("Expected schema setup to be skipped, got %v", err)
	}
}

func TestDirectoryDegradedAdminOperationsFail(t *testing.T) {
	d := NewDirectory(downDatabase{})

	_, err := d.List(context.Background())
	appErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error from List, got %T", err)
	}
	if appErr.Kind != KindServiceUnavailable {
		t.Errorf("Expected kind SERVICE_UNAVAILABLE, got '%s'", appErr.Kind)
	}

	err = d.SetRole(context.Background(), "ext-1", RoleAdmin)
	appErr, ok = err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error from SetRole, got %T", err)
	}
	if appErr.Kind != KindServiceUnavailable {
		t.Errorf("Expected kind SERVICE_UNAVAILABLE, got '%s'", appErr.Kind)
	}
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	d := NewDirectory(downDatabase{})

	err := d.SetRole(context.Background(), "ext-1", "superuser")
	appErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if appErr.Kind != KindValidation {
		t.Errorf("Expected kind VALIDATION_ERROR, got '%s'", appErr.Kind)
	}
}
