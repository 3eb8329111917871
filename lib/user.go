package gantry

import (
	"context"
	"time"
)

// Roles assignable to a user. Everything that is not an admin is a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents one authenticated principal known to the system. Exactly
// one local record exists per distinct identity-provider subject identifier.
type User struct {
	ID             int64     `db:"id" json:"id" desc:"Local numeric identifier" ex:"42"`
	ExternalID     string    `db:"external_id" json:"externalID" validate:"required" desc:"Identity-provider subject identifier" ex:"auth0|507f1f77bcf86cd799439011"`
	Name           *string   `db:"name" json:"name" desc:"Display name, if the provider supplied one" ex:"John Doe"`
	Email          *string   `db:"email" json:"email" validate:"omitempty,email" desc:"Email address, if the provider supplied one" ex:"john.doe@example.com"`
	Provider       *string   `db:"provider" json:"provider" desc:"Login method used at the identity provider" ex:"google"`
	Role           string    `db:"role" json:"role" validate:"oneof=user admin" desc:"Authorization role" ex:"user"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
	LastSignedInAt time.Time `db:"last_signed_in_at" json:"lastSignedInAt"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserUpsert describes a partial create-or-update keyed on ExternalID.
// A nil pointer means "leave the column unchanged"; a pointer to an empty
// string clears the column. LastSignedInAt nil with no other field supplied
// stamps the current time, so every upsert advances freshness.
type UserUpsert struct {
	ExternalID     string
	Name           *string
	Email          *string
	Provider       *string
	Role           *string
	LastSignedInAt *time.Time
}

// Directory resolves and maintains local user records keyed on the
// identity-provider subject identifier.
type Directory interface {
	// EnsureSchema applies the directory's backing schema on startup.
	EnsureSchema(ctx context.Context) error

	// FindByExternalID is a point lookup. Absence is not an error: the
	// second return is false and err is nil.
	FindByExternalID(ctx context.Context, externalID string) (*User, bool, error)

	// Upsert performs an atomic create-or-update. Only fields explicitly
	// supplied in the UserUpsert are written on conflict.
	Upsert(ctx context.Context, up UserUpsert) error

	// Touch advances last_signed_in_at without touching profile fields.
	Touch(ctx context.Context, externalID string) error

	// List returns all known users, newest first.
	List(ctx context.Context) ([]User, error)

	// SetRole changes a user's role.
	SetRole(ctx context.Context, externalID, role string) error
}
