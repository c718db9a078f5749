// Package policy maps a role and its permission grants to the capabilities
// a caller holds. Every authorization decision in the API goes through Resolve.
package policy

import "github.com/kendall-kelly/delivery-marketplace-api/models"

// Capability names a single action a caller may perform
type Capability string

const (
	OrdersReadOwn        Capability = "orders:read:own"
	OrdersReadAssigned   Capability = "orders:read:assigned"
	OrdersReadAll        Capability = "orders:read:all"
	OrdersCreateOwn      Capability = "orders:create:own"
	OrdersCreateAny      Capability = "orders:create:any"
	OrdersUpdateOwn      Capability = "orders:update:own"
	OrdersUpdateAny      Capability = "orders:update:any"
	OrdersStatusAssigned Capability = "orders:status:assigned"
	OrdersStatusAny      Capability = "orders:status:any"
	OrdersAssign         Capability = "orders:assign"
	OrdersCancelOwn      Capability = "orders:cancel:own"
	UsersImpersonate     Capability = "users:impersonate"
	ImpersonationLogs    Capability = "impersonation:logs"
	NotificationsManage  Capability = "notifications:manage"
	NotesManage          Capability = "notes:manage"
)

// Set is an immutable collection of capabilities
type Set map[Capability]struct{}

// Has reports whether the set contains c
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in declaration order
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s))
	for _, c := range all {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

var all = []Capability{
	OrdersReadOwn, OrdersReadAssigned, OrdersReadAll,
	OrdersCreateOwn, OrdersCreateAny,
	OrdersUpdateOwn, OrdersUpdateAny,
	OrdersStatusAssigned, OrdersStatusAny,
	OrdersAssign, OrdersCancelOwn,
	UsersImpersonate, ImpersonationLogs,
	NotificationsManage, NotesManage,
}

var orderAdmin = []Capability{
	OrdersReadAll, OrdersCreateAny, OrdersUpdateAny, OrdersStatusAny, OrdersAssign, NotesManage,
}

func setOf(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Resolve computes the capability set for a role and its grants.
// Unknown roles resolve to the empty set.
func Resolve(role string, grants []string) Set {
	switch role {
	case models.RoleCustomer:
		return setOf(OrdersReadOwn, OrdersCreateOwn, OrdersUpdateOwn, OrdersCancelOwn)
	case models.RoleDriver:
		return setOf(OrdersReadAssigned, OrdersStatusAssigned)
	case models.RoleAdmin:
		return setOf(all...)
	case models.RoleSubadmin:
		caps := append([]Capability{}, orderAdmin...)
		for _, g := range grants {
			switch g {
			case models.PermissionUserImpersonation:
				caps = append(caps, UsersImpersonate, ImpersonationLogs)
			case models.PermissionNotificationsManage:
				caps = append(caps, NotificationsManage)
			}
		}
		return setOf(caps...)
	}
	return Set{}
}

// ForUser resolves the capabilities of a loaded user
func ForUser(u *models.User) Set {
	return Resolve(u.Role, u.PermissionNames())
}

// Caller is the effective identity of a request together with its capabilities
type Caller struct {
	UserID string
	Role   string
	Caps   Set
}

// NewCaller builds a Caller for a loaded user
func NewCaller(u *models.User) Caller {
	return Caller{UserID: u.ID, Role: u.Role, Caps: ForUser(u)}
}

// Can reports whether the caller holds c
func (c Caller) Can(want Capability) bool {
	return c.Caps.Has(want)
}
