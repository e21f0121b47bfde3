package middleware

import "github.com/gosuda/shopdesk/internal/domain"

// Staff roles as carried in tokens and API keys.
const (
	RoleSuperAdmin = domain.RoleSuperAdmin
	RoleAdmin      = domain.RoleAdmin
	RoleMember     = domain.RoleMember
	RoleViewer     = domain.RoleViewer
)

// HasRole reports whether role is one of allowed. Platform superadmins pass
// every check; an empty role never does.
func HasRole(role string, allowed ...string) bool {
	switch role {
	case "":
		return false
	case RoleSuperAdmin:
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
