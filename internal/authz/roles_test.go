package authz

import "testing"

func TestRoleFor(t *testing.T) {
	m := RoleMap{
		Admins:  []string{"Root@Example.com"},
		Masters: []string{"lead@example.com", "root@example.com"},
	}

	tests := []struct {
		email string
		want  Role
	}{
		{"root@example.com", RoleAdmin},
		{"  ROOT@example.com ", RoleAdmin},
		{"lead@example.com", RoleMaster},
		{"someone@example.com", RoleNormal},
		{"", RoleNormal},
	}
	for _, tt := range tests {
		if got := m.RoleFor(tt.email); got != tt.want {
			t.Errorf("RoleFor(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}
