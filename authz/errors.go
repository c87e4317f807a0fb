package authz

import "errors"

var (
	// ErrForbidden is returned when the actor's role ranks below the
	// required minimum. Callers surface it as a generic denial.
	ErrForbidden = errors.New("authz: insufficient role")

	// ErrNoActor is returned when the request context carries no
	// resolved profile.
	ErrNoActor = errors.New("authz: no authenticated actor")
)
