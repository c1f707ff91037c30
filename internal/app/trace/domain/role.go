package domain

import (
	"fmt"
	"strings"
)

// Role is a participant of the supply chain. Each has its own dashboard
// and its own base path on the backend.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleConsumer    Role = "consumer"
)

// Roles lists every role in supply chain order.
var Roles = []Role{RoleFarmer, RoleDistributor, RoleRetailer, RoleConsumer}

// ParseRole validates a role name, ignoring case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string { return string(r) }

// Require returns ErrRoleNotPermitted unless r is one of allowed.
func (r Role) Require(allowed ...Role) error {
	for _, a := range allowed {
		if r == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRoleNotPermitted, r)
}
