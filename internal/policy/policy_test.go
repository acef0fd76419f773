package policy

import (
	"testing"

	"eduadmin-console/internal/auth"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestClassify(t *testing.T) {
	p := Default()
	cases := []struct {
		path string
		want PathClass
	}{
		{"/login", ClassPublic},
		{"/login/admin", ClassPublic},
		{"/reset-password", ClassPublic},
		{"/dashboard", ClassPrivate},
		{"/dashboard/stats", ClassPrivate},
		{"/config", ClassPrivate},
		{"/users", ClassPrivate},
		{"/institutions", ClassPrivate},
		{"/admin", ClassPrivate},
		{"/favicon.ico", ClassUnmatched},
		{"/", ClassUnmatched},
	}
	for _, tc := range cases {
		if got := p.Classify(tc.path); got != tc.want {
			t.Fatalf("Classify(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestAllows_RoleTable(t *testing.T) {
	p := Default()
	cases := []struct {
		role string
		path string
		want bool
	}{
		{auth.RoleDocente, "/dashboard", true},
		{auth.RoleDocente, "/config", true},
		{auth.RoleDocente, "/users", false},
		{auth.RoleDocente, "/institutions", false},
		{auth.RoleAdmin, "/users", true},
		{auth.RoleAdmin, "/institutions", false},
		{auth.RoleAdmin, "/admin", false},
		{auth.RoleSuper, "/institutions", true},
		{auth.RoleSuper, "/admin", true},
		{"UNKNOWN", "/dashboard", false},
		{"", "/dashboard", false},
	}
	for _, tc := range cases {
		if got := p.Allows(tc.role, tc.path); got != tc.want {
			t.Fatalf("Allows(%q, %q) = %v, want %v", tc.role, tc.path, got, tc.want)
		}
	}
}

func TestValidate_RejectsUnreachablePrefix(t *testing.T) {
	p := Default()
	p.Private = append(p.Private, "/billing")
	if err := p.Validate(); err == nil {
		t.Fatalf("expected unreachable prefix error")
	}
}

func TestValidate_RejectsEmptyRole(t *testing.T) {
	p := Default()
	p.Roles["OBSERVER"] = nil
	if err := p.Validate(); err == nil {
		t.Fatalf("expected empty role error")
	}
}
