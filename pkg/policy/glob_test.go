// Copyright 2025 Certen Protocol

package policy

import "testing"

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"*", "anything", true},
		{"file.*", "file.read", true},
		{"*.delete", "file.delete", true},
		{"*admin*", "super_admin_user", true},
		{"file.*", "database.read", false},
	}
	for _, c := range cases {
		if got := matchGlob(c.pattern, c.value); got != c.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", c.pattern, c.value, got, c.want)
		}
	}
}
