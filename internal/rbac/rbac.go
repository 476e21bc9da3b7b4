package rbac

import "api/internal/models"

// HasRole reports whether the claims satisfy the required role. Admins
// satisfy every role.
func HasRole(claims models.UserClaims, role models.Role) bool {
	if claims.Role == models.RoleAdmin {
		return true
	}
	return claims.Role == role
}
