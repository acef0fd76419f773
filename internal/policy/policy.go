package policy

import (
	"errors"
	"fmt"
	"strings"

	"eduadmin-console/internal/auth"
)

// PathClass is the guard-visible classification of a request path.
type PathClass int

const (
	ClassUnmatched PathClass = iota
	ClassPublic
	ClassPrivate
)

// Policy is the static route-access table: which path prefixes are public,
// which are private, and which private prefixes each role may enter. It is
// compiled in at build time; there is no runtime reconfiguration.
type Policy struct {
	Public  []string
	Private []string
	Roles   map[string][]string

	LoginPath   string
	LandingPath string
}

// Default returns the console's route policy. The role table is part of the
// product contract: DOCENTE sees only the teaching dashboard, ADMIN manages
// its own institution's users, SUPER additionally manages institutions and
// the super-admin area.
func Default() Policy {
	return Policy{
		Public:  []string{"/login", "/reset-password"},
		Private: []string{"/dashboard", "/config", "/users", "/institutions", "/admin"},
		Roles: map[string][]string{
			auth.RoleDocente: {"/dashboard", "/config"},
			auth.RoleAdmin:   {"/dashboard", "/config", "/users"},
			auth.RoleSuper:   {"/dashboard", "/config", "/users", "/institutions", "/admin"},
		},
		LoginPath:   "/login",
		LandingPath: "/dashboard",
	}
}

// Classify matches a path against the public and private prefix sets.
// Public wins over private so that /login/admin never requires a session.
func (p Policy) Classify(path string) PathClass {
	if matchesAny(path, p.Public) {
		return ClassPublic
	}
	if matchesAny(path, p.Private) {
		return ClassPrivate
	}
	return ClassUnmatched
}

// Allows reports whether the role's allow-list covers the given path.
// Unknown roles are allowed nothing.
func (p Policy) Allows(role, path string) bool {
	return matchesAny(path, p.Roles[role])
}

// Validate enforces the structural invariants of the table: every private
// prefix must be reachable by at least one role, and every role must map to
// a non-empty set, or parts of the console are dead on arrival.
func (p Policy) Validate() error {
	var errs []error

	if p.LoginPath == "" || p.LandingPath == "" {
		errs = append(errs, errors.New("login and landing paths are required"))
	}
	if len(p.Public) == 0 {
		errs = append(errs, errors.New("at least one public prefix is required"))
	}

	for role, prefixes := range p.Roles {
		if len(prefixes) == 0 {
			errs = append(errs, fmt.Errorf("role %s maps to no route prefixes", role))
		}
	}

	for _, prefix := range p.Private {
		reachable := false
		for _, prefixes := range p.Roles {
			if matchesAny(prefix, prefixes) {
				reachable = true
				break
			}
		}
		if !reachable {
			errs = append(errs, fmt.Errorf("private prefix %s is unreachable by every role", prefix))
		}
	}

	return errors.Join(errs...)
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
