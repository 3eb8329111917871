package gantry

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Access declares the guard chain a procedure requires. The policy lives on
// the declaration, not inside the handler.
type Access int

const (
	// AccessPublic procedures skip guards but still normalize errors.
	AccessPublic Access = iota
	// AccessAuthenticated procedures require a resolved user.
	AccessAuthenticated
	// AccessAdmin procedures require a resolved user with the admin role.
	AccessAdmin
)

// Procedure declares one callable operation: its name, required access
// level, input prototype and handler. Input is a factory returning a pointer
// to a fresh input struct; nil means the procedure takes no input.
type Procedure struct {
	Name        string
	Description string
	Access      Access
	Input       func() any
	Handler     HandlerFunc
}

// Registry is the declarative mapping from operation name to its middleware
// chain, validation rule and handler. Pure wiring.
type Registry struct {
	procs map[string]*Procedure
	order []string
}

// NewRegistry creates an empty procedure registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]*Procedure)}
}

// Register adds procedures to the registry. Duplicate or empty names are
// wiring bugs and are rejected.
func (r *Registry) Register(procs ...*Procedure) error {
	for _, p := range procs {
		if p.Name == "" {
			return fmt.Errorf("procedure with empty name")
		}
		if p.Handler == nil {
			return fmt.Errorf("procedure %s has no handler", p.Name)
		}
		if _, exists := r.procs[p.Name]; exists {
			return fmt.Errorf("procedure %s registered twice", p.Name)
		}
		r.procs[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return nil
}

// Procedures returns the registered procedures in registration order.
func (r *Registry) Procedures() []*Procedure {
	out := make([]*Procedure, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.procs[name])
	}
	return out
}

// guardsFor maps an access level to its guard chain. NormalizeErrors wraps
// everything so that guard refusals are enveloped the same way handler
// failures are; public procedures keep the normalization and skip the
// guards.
func guardsFor(access Access) []Guard {
	switch access {
	case AccessAuthenticated:
		return []Guard{NormalizeErrors, RequireUser}
	case AccessAdmin:
		return []Guard{NormalizeErrors, RequireAdmin}
	default:
		return []Guard{NormalizeErrors}
	}
}

// Mount binds every registered procedure at POST /rpc/<name>. Each request
// is resolved into a context, its input bound and validated, and the
// composed guard chain run. Malformed input is refused before the handler
// with field-level details.
func (r *Registry) Mount(router gin.IRouter, resolver *Resolver, v Validate) {
	for _, p := range r.Procedures() {
		proc := p
		chain := Compose(guardsFor(proc.Access), proc.Handler)

		Log().Debug("Mounting procedure",
			zap.String("name", proc.Name),
			zap.Int("access", int(proc.Access)))

		router.POST("/rpc/"+proc.Name, func(c *gin.Context) {
			rc := resolver.Resolve(c)

			var input any
			if proc.Input != nil {
				input = proc.Input()
				if err := c.ShouldBindJSON(input); err != nil {
					e := NewError(KindValidation,
						WithMessage("request body is not valid JSON"),
						WithCause(err))
					c.JSON(e.Status, e.Envelope())
					return
				}
				if err := v.IsValid(input); err != nil {
					e := Coerce(err, KindValidation)
					c.JSON(e.Status, e.Envelope())
					return
				}
			}

			out, err := chain(rc, input)
			if err != nil {
				// The chain is normalized, but keep the transport
				// boundary total anyway.
				e := Coerce(err, KindInternal)
				c.JSON(e.Status, e.Envelope())
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
