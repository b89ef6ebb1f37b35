package authz

import (
	"slices"
	"strings"
)

// RoleMap assigns the initial role of a newly registered user from the
// email address. Anything not listed is Normal.
type RoleMap struct {
	Admins  []string
	Masters []string
}

func (m RoleMap) RoleFor(email string) Role {
	email = normalizeEmail(email)
	if email == "" {
		return RoleNormal
	}
	match := func(e string) bool { return normalizeEmail(e) == email }

	switch {
	case slices.ContainsFunc(m.Admins, match):
		return RoleAdmin
	case slices.ContainsFunc(m.Masters, match):
		return RoleMaster
	default:
		return RoleNormal
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
