// Package routes holds the application route table and the role-based route guard.
package routes

import (
	"strings"

	"github.com/jrsteele09/voter-registration/users"
)

// Policy decides where a user may stay given their role.
//
// Paths are matched by segment: "/officer" matches "/officer" and "/officer/voters" but not "/officers".
type Policy struct {
	// OfficerOnly routes are reserved for the officer role.
	OfficerOnly []string
	// PublicOnly routes are reserved for the public role.
	PublicOnly []string
	// Open routes are reachable without authentication, matched exactly.
	Open []string
	// OpenSubstrings are reachable without authentication when contained anywhere in the path.
	OpenSubstrings []string
}

// DefaultPolicy returns the application route table.
func DefaultPolicy() Policy {
	return Policy{
		OfficerOnly: []string{OfficerPrefix},
		PublicOnly: []string{
			PublicHome,
			PublicApply,
			PublicStatus,
			PublicProfile,
		},
		Open: []string{
			Landing,
			Entry,
			PublicAbout,
			PublicPollingInfo,
		},
		OpenSubstrings: []string{"reset-password", "forgot-password"},
	}
}

// Landing returns the route a role is sent to after sign-in.
func (p Policy) Landing(role users.RoleType) string {
	if role.IsOfficer() {
		return OfficerDashboard
	}
	return PublicHome
}

// Redirect returns the target path when the current location is not allowed, and false when it is.
func (p Policy) Redirect(path string, role users.RoleType, authenticated bool) (string, bool) {
	path = clean(path)

	if !authenticated {
		if p.IsOpen(path) {
			return "", false
		}
		return Entry, true
	}

	if p.passwordFlow(path) {
		return "", false
	}

	if role.IsOfficer() {
		if path == Entry || matchAny(path, p.PublicOnly) {
			return OfficerDashboard, true
		}
		return "", false
	}

	if path == Entry || matchAny(path, p.OfficerOnly) {
		return PublicHome, true
	}
	return "", false
}

// IsOpen reports whether path is reachable without authentication.
func (p Policy) IsOpen(path string) bool {
	path = clean(path)
	for _, open := range p.Open {
		if path == open {
			return true
		}
	}
	return p.passwordFlow(path)
}

// A recovery session is authenticated, so password routes must never bounce.
func (p Policy) passwordFlow(path string) bool {
	for _, s := range p.OpenSubstrings {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}

func matchAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// clean strips the query, fragment and trailing slash.
func clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return Landing
	}
	return path
}
