package common

import "errors"

var ErrAccessDenied = errors.New("access denied")

// Role names used by the pool's administrative surface.
const (
	RolePoolAdmin = "pool.admin"
	RoleCustodian = "pool.custodian"
)

// RoleView reports role membership for administrative gating. Role
// administration itself lives outside the core; the engine only consults the
// view at its gating points.
type RoleView interface {
	HasRole(role string, addr [20]byte) bool
}

// RequireRole returns ErrAccessDenied unless the address holds the role. A
// nil view grants everything, mirroring the pause guard's behaviour.
func RequireRole(v RoleView, role string, addr [20]byte) error {
	if v == nil || role == "" {
		return nil
	}
	if !v.HasRole(role, addr) {
		return ErrAccessDenied
	}
	return nil
}

// StaticRoles is a fixed role table resolved at construction time.
type StaticRoles struct {
	members map[string]map[[20]byte]bool
}

func NewStaticRoles() *StaticRoles {
	return &StaticRoles{members: make(map[string]map[[20]byte]bool)}
}

func (r *StaticRoles) Grant(role string, addr [20]byte) {
	if r == nil || role == "" {
		return
	}
	if r.members[role] == nil {
		r.members[role] = make(map[[20]byte]bool)
	}
	r.members[role][addr] = true
}

func (r *StaticRoles) HasRole(role string, addr [20]byte) bool {
	if r == nil {
		return false
	}
	return r.members[role][addr]
}
