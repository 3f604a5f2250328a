package domain

import "github.com/google/uuid"

// Role is the marketplace role carried by an authenticated user.
type Role string

const (
	RoleHost      Role = "host"
	RolePerformer Role = "performer"
	RoleAdmin     Role = "admin"
)

// Actor is the request-scoped identity passed explicitly into every service
// operation. It is built from the bearer token by the HTTP middleware.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// Capability describes what a role may see and do across the booking and
// tour read models. Role-specific views are derived from this table rather
// than from per-role code paths.
type Capability struct {
	CreateBookings  bool
	SubmitQuotes    bool
	RespondToQuotes bool
	ManageTours     bool
	ViewFinancials  bool
	ViewAll         bool
}

// Capabilities maps each role to its capability set.
var Capabilities = map[Role]Capability{
	RoleHost: {
		CreateBookings:  true,
		RespondToQuotes: true,
	},
	RolePerformer: {
		SubmitQuotes:   true,
		ManageTours:    true,
		ViewFinancials: true,
	},
	RoleAdmin: {
		CreateBookings:  true,
		SubmitQuotes:    true,
		RespondToQuotes: true,
		ManageTours:     true,
		ViewFinancials:  true,
		ViewAll:         true,
	},
}

// Can returns the capability set for the actor's role. Unknown roles get none.
func (a Actor) Can() Capability {
	return Capabilities[a.Role]
}

// Valid reports whether the role is one the marketplace knows about.
func (r Role) Valid() bool {
	_, ok := Capabilities[r]
	return ok
}
