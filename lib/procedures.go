package gantry

import (
	"time"
)

// EchoInput is the validated input of the health.echo procedure. Timestamp
// must be non-negative; zero is a legal epoch value.
type EchoInput struct {
	Timestamp int64 `json:"timestamp" validate:"gte=0"`
}

// SetRoleInput is the validated input of the users.setRole procedure.
type SetRoleInput struct {
	ExternalID string `json:"externalID" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=user admin"`
}

// builtinProcedures declares the operations every gantry application ships
// with. Application procedures are added via Engine.Register.
func builtinProcedures(e *gEngine) []*Procedure {
	return []*Procedure{
		{
			Name:        "whoami",
			Description: "Returns the calling user, or null for anonymous callers.",
			Access:      AccessPublic,
			Handler: func(rc *Context, _ any) (any, error) {
				user, ok := rc.User()
				if !ok {
					return nil, nil
				}
				return user, nil
			},
		},
		{
			Name:        "health.echo",
			Description: "Validated round-trip used by clients to probe the input contract.",
			Access:      AccessPublic,
			Input:       func() any { return &EchoInput{} },
			Handler: func(_ *Context, input any) (any, error) {
				in := input.(*EchoInput)
				return map[string]any{
					"timestamp":  in.Timestamp,
					"receivedAt": time.Now().UTC().Format(time.RFC3339),
				}, nil
			},
		},
		{
			Name:        "users.list",
			Description: "Lists all known users.",
			Access:      AccessAdmin,
			Handler: func(rc *Context, _ any) (any, error) {
				return e.directory.List(rc.StdContext())
			},
		},
		{
			Name:        "users.setRole",
			Description: "Changes a user's role.",
			Access:      AccessAdmin,
			Input:       func() any { return &SetRoleInput{} },
			Handler: func(rc *Context, input any) (any, error) {
				in := input.(*SetRoleInput)
				if err := e.directory.SetRole(rc.StdContext(), in.ExternalID, in.Role); err != nil {
					return nil, err
				}
				return map[string]any{
					"externalID": in.ExternalID,
					"role":       in.Role,
				}, nil
			},
		},
	}
}
