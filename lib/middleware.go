package gantry

import (
	"go.uber.org/zap"
)

// Next invokes the rest of the chain. A guard may skip it to short-circuit.
type Next func() (any, error)

// Guard is a middleware with a uniform signature: it receives the request
// context and the continuation, and may refuse to proceed. Guards are pure
// functions of the context, which makes each one independently testable.
type Guard func(*Context, Next) (any, error)

// HandlerFunc is a procedure body: context and validated input to result.
type HandlerFunc func(*Context, any) (any, error)

// Compose applies an ordered list of guards around a handler, outermost
// first. There is no hidden framework chaining: the order in the slice is
// the order of execution.
func Compose(guards []Guard, handler HandlerFunc) HandlerFunc {
	return func(rc *Context, input any) (any, error) {
		var run func(i int) (any, error)
		run = func(i int) (any, error) {
			if i == len(guards) {
				return handler(rc, input)
			}
			return guards[i](rc, func() (any, error) {
				return run(i + 1)
			})
		}
		return run(0)
	}
}

// RequireUser refuses anonymous requests with AUTH_REQUIRED.
func RequireUser(rc *Context, next Next) (any, error) {
	if _, ok := rc.User(); !ok {
		return nil, NewError(KindAuthRequired)
	}
	return next()
}

// RequireAdmin refuses anonymous requests with AUTH_REQUIRED and
// authenticated non-admins with ADMIN_REQUIRED.
func RequireAdmin(rc *Context, next Next) (any, error) {
	user, ok := rc.User()
	if !ok {
		return nil, NewError(KindAuthRequired)
	}
	if !user.IsAdmin() {
		return nil, NewError(KindAdminRequired)
	}
	return next()
}

// NormalizeErrors guarantees that every failure leaving the chain is a
// structured *Error ready for the transport envelope. Structured errors pass
// through unchanged; anything unrecognized becomes INTERNAL_ERROR with its
// cause logged server-side only, so implementation details never leak to the
// caller.
func NormalizeErrors(rc *Context, next Next) (any, error) {
	out, err := next()
	if err == nil {
		return out, nil
	}

	if appErr, ok := err.(*Error); ok {
		return nil, appErr
	}

	Log().Error("Unhandled error escaped a procedure",
		zap.String("request_id", rc.RequestID()),
		zap.Error(err))
	return nil, NewError(KindInternal, WithCause(err))
}
