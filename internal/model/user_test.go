package model

import "testing"

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleManager, RoleUser} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	for _, role := range []string{"", "Admin", "owner", "superuser"} {
		if ValidRole(role) {
			t.Errorf("ValidRole(%q) = true", role)
		}
	}
}

func TestRoleAtLeast(t *testing.T) {
	order := []string{RoleUser, RoleManager, RoleAdmin}
	for i, role := range order {
		for j, minimum := range order {
			want := i >= j
			if got := RoleAtLeast(role, minimum); got != want {
				t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", role, minimum, got, want)
			}
		}
	}

	// Unknown roles never satisfy a check.
	unknown := [][2]string{
		{"unknown", RoleUser},
		{RoleAdmin, "unknown"},
		{"", ""},
		{"", RoleUser},
	}
	for _, pair := range unknown {
		if RoleAtLeast(pair[0], pair[1]) {
			t.Errorf("RoleAtLeast(%q, %q) = true, want false", pair[0], pair[1])
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"gudang-mitra-2024", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
