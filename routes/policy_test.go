package routes_test

import (
	"testing"

	"github.com/jrsteele09/voter-registration/routes"
	"github.com/jrsteele09/voter-registration/users"
	"github.com/stretchr/testify/require"
)

func TestRedirect(t *testing.T) {
	policy := routes.DefaultPolicy()

	tests := []struct {
		name          string
		path          string
		role          users.RoleType
		authenticated bool
		want          string
		redirect      bool
	}{
		{name: "anonymous on officer route", path: routes.OfficerVoters, want: routes.Entry, redirect: true},
		{name: "anonymous on public route", path: routes.PublicApply, want: routes.Entry, redirect: true},
		{name: "anonymous on entry", path: routes.Entry},
		{name: "anonymous on landing", path: routes.Landing},
		{name: "anonymous on empty path", path: ""},
		{name: "anonymous on forgot password", path: routes.ForgotPassword},
		{name: "anonymous on reset link with query", path: "/reset-password?token=abc"},
		{name: "anonymous on about trailing slash", path: "/about/"},
		{name: "officer on public home", path: routes.PublicHome, role: users.RoleOfficer, authenticated: true, want: routes.OfficerDashboard, redirect: true},
		{name: "officer on nested public route", path: "/apply/step-2", role: users.RoleOfficer, authenticated: true, want: routes.OfficerDashboard, redirect: true},
		{name: "officer on entry", path: routes.Entry, role: users.RoleOfficer, authenticated: true, want: routes.OfficerDashboard, redirect: true},
		{name: "officer on officer route", path: routes.OfficerApplications, role: users.RoleOfficer, authenticated: true},
		{name: "officer on about", path: routes.PublicAbout, role: users.RoleOfficer, authenticated: true},
		{name: "public on officer route", path: routes.OfficerDashboard, role: users.RolePublic, authenticated: true, want: routes.PublicHome, redirect: true},
		{name: "public on entry", path: routes.Entry, role: users.RolePublic, authenticated: true, want: routes.PublicHome, redirect: true},
		{name: "public on public route", path: routes.PublicStatus, role: users.RolePublic, authenticated: true},
		{name: "public on lookalike prefix", path: "/officers-list", role: users.RolePublic, authenticated: true},
		{name: "unknown role on officer route", path: routes.OfficerPrefix, role: users.RoleType("clerk"), authenticated: true, want: routes.PublicHome, redirect: true},
		{name: "recovery session on reset route", path: routes.ResetPassword, role: users.RolePublic, authenticated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, redirect := policy.Redirect(tt.path, tt.role, tt.authenticated)
			require.Equal(t, tt.redirect, redirect)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLanding(t *testing.T) {
	policy := routes.DefaultPolicy()
	require.Equal(t, routes.OfficerDashboard, policy.Landing(users.RoleOfficer))
	require.Equal(t, routes.PublicHome, policy.Landing(users.RolePublic))
	require.Equal(t, routes.PublicHome, policy.Landing(""))
}

func TestIsOpen(t *testing.T) {
	policy := routes.DefaultPolicy()
	require.True(t, policy.IsOpen(routes.Entry))
	require.True(t, policy.IsOpen("/auth/forgot-password#top"))
	require.False(t, policy.IsOpen(routes.PublicProfile))
	require.False(t, policy.IsOpen("/about/team"))
}
