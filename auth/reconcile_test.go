package auth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/voter-registration/auth"
	"github.com/jrsteele09/voter-registration/identity"
	fakeidentity "github.com/jrsteele09/voter-registration/identity/servicefake"
	"github.com/jrsteele09/voter-registration/internal/metrics"
	"github.com/jrsteele09/voter-registration/internal/utils"
	"github.com/jrsteele09/voter-registration/users"
	fakeuserrepo "github.com/jrsteele09/voter-registration/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestReconcile_NilSession(t *testing.T) {
	f := setupTestFixture(t)

	require.Nil(t, f.reconciler.Reconcile(context.Background(), nil))
	require.False(t, f.reconciler.State().IsAuthenticated)
	require.Empty(t, f.notifier.All())
}

func TestReconcile_ExpiredSessionRefreshFails(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)

	expired := f.identity.NewSession(id, -time.Minute)
	f.identity.SetSession(expired)
	f.identity.FailNext(fakeidentity.OpRefreshSession, &identity.Error{Status: 400, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"})

	user := f.reconciler.Reconcile(context.Background(), expired)

	require.Nil(t, user)
	require.Nil(t, f.reconciler.State().User)
	require.Equal(t, 1, f.identity.Calls(fakeidentity.OpRefreshSession))
	require.Equal(t, 1, f.identity.Calls(fakeidentity.OpSignOut))
	require.Equal(t, 0, f.users.Calls(fakeuserrepo.OpGetByID))

	errs := f.notifier.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "Session expired", errs[0].Title)
}

func TestReconcile_ExpiredSessionRefreshSucceeds(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)

	expired := f.identity.NewSession(id, -time.Minute)
	f.identity.SetSession(expired)

	user := f.reconciler.Reconcile(context.Background(), expired)

	require.NotNil(t, user)
	require.Equal(t, id.ID, user.ID)
	require.Equal(t, 1, f.identity.Calls(fakeidentity.OpRefreshSession))
	require.Equal(t, 0, f.identity.Calls(fakeidentity.OpSignOut))
}

func TestReconcile_SessionWithoutExpiryIsNotRefreshed(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)

	session := f.identity.NewSession(id, time.Hour)
	session.Token.Expiry = time.Time{}

	require.NotNil(t, f.reconciler.Reconcile(context.Background(), session))
	require.Equal(t, 0, f.identity.Calls(fakeidentity.OpRefreshSession))
}

func TestReconcile_ExistingProfileWithRegistration(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)
	f.users.PutRegistration(&users.Registration{
		ApplicantID: "app-1",
		UserID:      id.ID,
		Status:      "approved",
		VoterID:     utils.Ptr("VTR-0042"),
		Precinct:    utils.Ptr("P-12"),
	})

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.Equal(t, &auth.AuthenticatedUser{
		ID:                 id.ID,
		Email:              testPublicEmail,
		Username:           "jane",
		Role:               users.RolePublic,
		VoterID:            utils.Ptr("VTR-0042"),
		Precinct:           utils.Ptr("P-12"),
		RegistrationStatus: utils.Ptr("approved"),
	}, user)
	require.Equal(t, user, f.reconciler.State().User)
	require.Equal(t, 0, f.users.Calls(fakeuserrepo.OpCreate))
}

func TestReconcile_NoApplicantRecord(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.NotNil(t, user)
	require.Nil(t, user.RegistrationStatus)
	require.Nil(t, user.VoterID)
	require.Nil(t, user.Precinct)
	require.Empty(t, f.notifier.All())
}

func TestReconcile_RegistrationLookupFailureIsNotFatal(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)
	f.users.FailNext(fakeuserrepo.OpGetRegistration, errors.New("connection reset by peer"))

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.NotNil(t, user)
	require.Nil(t, user.RegistrationStatus)
	require.Empty(t, f.notifier.All())
}

func TestReconcile_ProvisionsMissingProfile(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "janed", "")

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.NotNil(t, user)
	require.Equal(t, users.RolePublic, user.Role)
	require.Equal(t, "janed", user.Username)
	require.False(t, user.Temporary)
	require.Equal(t, 1, f.users.Count())

	stored, err := f.users.GetByID(context.Background(), id.ID)
	require.NoError(t, err)
	require.Equal(t, "janed", stored.Username)
	require.Equal(t, f.clock.Now(), stored.CreatedAt)
}

func TestReconcile_ProvisionUsesEmailWhenMetadataMissing(t *testing.T) {
	f := setupTestFixture(t)
	id, err := f.identity.AddAccount("no.meta@example.com", testPassword, nil)
	require.NoError(t, err)

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))
	require.NotNil(t, user)
	require.Equal(t, "no.meta", user.Username)
}

func TestReconcile_ConcurrentProvisioningConverges(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", "")
	session := f.identity.NewSession(id, time.Hour)

	// Create is only reached after "not found", so holding both inserts here
	// guarantees each pass has missed the row before either writes it.
	var arrived sync.WaitGroup
	arrived.Add(2)
	var creates atomic.Int32
	f.users.OnCall(fakeuserrepo.OpCreate, func(string) {
		if creates.Add(1) <= 2 {
			arrived.Done()
			arrived.Wait()
		}
	})

	results := make([]*auth.AuthenticatedUser, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.reconciler.Reconcile(context.Background(), session)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, f.users.Count())
	require.Equal(t, 2, f.users.Calls(fakeuserrepo.OpCreate))
	// Two initial fetches plus the re-fetch by the pass that lost the insert.
	require.Equal(t, 3, f.users.Calls(fakeuserrepo.OpGetByID))
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	require.Equal(t, *results[0], *results[1])
	require.False(t, results[0].Temporary)
	require.Equal(t, *results[0], *f.reconciler.State().User)
	require.Empty(t, f.notifier.Errors())
}

func TestReconcile_DuplicateOnCreateUsesStoredProfile(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", "")

	var once sync.Once
	f.users.OnCall(fakeuserrepo.OpCreate, func(userID string) {
		once.Do(func() {
			f.users.Put(&users.User{ID: userID, Email: testPublicEmail, Username: "jane_first", Role: users.RolePublic})
		})
	})

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.NotNil(t, user)
	require.False(t, user.Temporary)
	require.Equal(t, "jane_first", user.Username)
	require.Equal(t, 1, f.users.Calls(fakeuserrepo.OpCreate))
	require.Equal(t, 2, f.users.Calls(fakeuserrepo.OpGetByID))
	require.Equal(t, 1, f.users.Count())
	require.Empty(t, f.notifier.Errors())
}

func TestReconcile_PermissionDeniedOnCreateUsesTemporaryProfile(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", "")
	f.users.FailNext(fakeuserrepo.OpCreate, fmt.Errorf("insert user_profiles: %w", users.ErrPermissionDenied))

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.NotNil(t, user)
	require.Equal(t, users.RolePublic, user.Role)
	require.Equal(t, "jane", user.Username)
	require.True(t, user.Temporary)
	require.Equal(t, 0, f.users.Count())
	require.Empty(t, f.notifier.All())
}

func TestReconcile_TransientFetchUsesTemporaryProfile(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testOfficerEmail, "officer", users.RoleOfficer)
	f.users.FailNext(fakeuserrepo.OpGetByID, fmt.Errorf("select: %w", users.ErrTransient))

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.NotNil(t, user)
	require.True(t, user.Temporary)
	require.Equal(t, users.RolePublic, user.Role)
	require.Equal(t, 0, f.users.Calls(fakeuserrepo.OpCreate))

	// The next pass sees the real row.
	user = f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))
	require.False(t, user.Temporary)
	require.Equal(t, users.RoleOfficer, user.Role)
}

func TestReconcile_CreateFailure(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", "")
	f.users.FailNext(fakeuserrepo.OpCreate, errors.New("disk full"))

	user := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	require.Nil(t, user)
	require.Nil(t, f.reconciler.State().User)
	errs := f.notifier.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "Profile unavailable", errs[0].Title)
}

func TestReconcile_FetchFailure(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)
	f.users.FailNext(fakeuserrepo.OpGetByID, errors.New("unexpected EOF"))

	require.Nil(t, f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour)))
	require.Len(t, f.notifier.Errors(), 1)
}

func TestReconcile_FailureNotificationSuppressedDuringPasswordUpdate(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)
	f.identity.Emit(identity.EventUserUpdated, nil)
	f.users.FailNext(fakeuserrepo.OpGetByID, errors.New("unexpected EOF"))

	require.Nil(t, f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour)))
	require.Empty(t, f.notifier.All())

	f.clock.Advance(4 * time.Second)
	f.users.FailNext(fakeuserrepo.OpGetByID, errors.New("unexpected EOF"))
	require.Nil(t, f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour)))
	require.Len(t, f.notifier.Errors(), 1)
}

func TestReconcile_StalePassDoesNotOverwriteNewer(t *testing.T) {
	f := setupTestFixture(t)
	slow := f.addAccount(t, testPublicEmail, "jane", users.RolePublic)
	fast := f.addAccount(t, testOfficerEmail, "officer", users.RoleOfficer)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.users.OnCall(fakeuserrepo.OpGetByID, func(id string) {
		if id == slow.ID {
			close(entered)
			<-release
		}
	})

	done := make(chan *auth.AuthenticatedUser)
	go func() {
		done <- f.reconciler.Reconcile(context.Background(), f.identity.NewSession(slow, time.Hour))
	}()
	<-entered

	newer := f.reconciler.Reconcile(context.Background(), f.identity.NewSession(fast, time.Hour))
	require.Equal(t, fast.ID, newer.ID)

	close(release)
	older := <-done

	require.NotNil(t, older)
	require.Equal(t, slow.ID, older.ID)
	require.Equal(t, fast.ID, f.reconciler.State().User.ID)
}

func TestReconcile_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := setupTestFixture(t, auth.WithMetrics(metrics.NewCollector(reg)))
	id := f.addAccount(t, testPublicEmail, "jane", "")

	f.reconciler.Reconcile(context.Background(), f.identity.NewSession(id, time.Hour))

	expected := `
# HELP voterreg_profile_provision_total Profile provisioning attempts by result.
# TYPE voterreg_profile_provision_total counter
voterreg_profile_provision_total{result="created"} 1
# HELP voterreg_reconcile_passes_total Reconciliation passes by outcome.
# TYPE voterreg_reconcile_passes_total counter
voterreg_reconcile_passes_total{outcome="anonymous"} 1
voterreg_reconcile_passes_total{outcome="authenticated"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"voterreg_profile_provision_total", "voterreg_reconcile_passes_total"))
}
