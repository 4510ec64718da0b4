package models

// Principal is the authenticated caller handed explicitly to every operation
// that needs to authorize. It carries no session state.
type Principal struct {
	UserID uint     `json:"user_id"`
	Roles  []string `json:"roles"`
}

// HasRole reports membership of role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports membership of at least one of roles.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// Owns reports whether the principal may act on a record owned by ownerID.
func (p Principal) Owns(ownerID uint) bool {
	return p.IsAdmin() || (p.UserID != 0 && p.UserID == ownerID)
}
