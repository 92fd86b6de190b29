package main

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"os"

	"github.com/jrsteele09/voter-registration/auth"
	"github.com/jrsteele09/voter-registration/identity"
	"github.com/jrsteele09/voter-registration/identity/gotrue"
	fakeidentity "github.com/jrsteele09/voter-registration/identity/servicefake"
	"github.com/jrsteele09/voter-registration/internal/config"
	"github.com/jrsteele09/voter-registration/internal/httpmw"
	"github.com/jrsteele09/voter-registration/internal/metrics"
	"github.com/jrsteele09/voter-registration/internal/utils"
	"github.com/jrsteele09/voter-registration/notify"
	"github.com/jrsteele09/voter-registration/routes"
	"github.com/jrsteele09/voter-registration/users"
	"github.com/jrsteele09/voter-registration/users/postgres"
	fakeuserrepo "github.com/jrsteele09/voter-registration/users/repofake"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	demoOfficerEmail = "officer@demo.local"
	demoVoterEmail   = "voter@demo.local"
	demoPassword     = "Password123"
)

// recoverer exchanges the tokens from a password reset link for a session.
type recoverer interface {
	ExchangeRecovery(ctx context.Context, accessToken, refreshToken string) (*identity.Session, error)
}

type app struct {
	reconciler *auth.Reconciler
	navigator  *terminalNavigator
	recovery   recoverer
	registry   *prometheus.Registry
	db         *sql.DB
	out        io.Writer
}

func newApp(ctx context.Context, c config.Config, opts options) (*app, error) {
	a := &app{
		navigator: newTerminalNavigator(routes.Entry, log.Logger),
		registry:  prometheus.NewRegistry(),
		out:       os.Stdout,
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var (
		ids  identity.Service
		repo users.UserRepo
		err  error
	)
	if opts.demo {
		ids, repo, err = demoServices()
	} else {
		ids, repo, err = a.remoteServices(ctx, c, opts.sessionPath)
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	reconciler, err := auth.NewReconciler(auth.Dependencies{
		Identity:  ids,
		Users:     repo,
		Notifier:  notify.NewLogNotifier(log.Logger),
		Navigator: a.navigator,
	},
		auth.WithLogger(log.Logger),
		auth.WithDebounce(c.GetReconcileDebounce()),
		auth.WithPasswordUpdateWindow(c.GetPasswordUpdateWindow()),
		auth.WithResetRedirect(c.GetPasswordResetRedirect()),
		auth.WithResetLimiter(rate.NewLimiter(rate.Every(c.GetPasswordResetInterval()), 1)),
		auth.WithMetrics(metrics.NewCollector(a.registry)),
	)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "[newApp] auth.NewReconciler")
	}
	a.reconciler = reconciler
	reconciler.Start(ctx)
	return a, nil
}

func (a *app) remoteServices(ctx context.Context, c config.Config, sessionPath string) (identity.Service, users.UserRepo, error) {
	client, err := gotrue.New(c.GetIdentityURL(), c.GetIdentityAPIKey(),
		gotrue.WithSessionStore(gotrue.FileStore{Path: sessionPath}))
	if err != nil {
		return nil, nil, errors.Wrap(err, "[remoteServices] gotrue.New")
	}
	a.recovery = client

	if err := postgres.RunMigrations(c.GetDatabaseURL()); err != nil {
		return nil, nil, errors.Wrap(err, "[remoteServices] postgres.RunMigrations")
	}
	db, err := postgres.Open(ctx, c.GetDatabaseURL())
	if err != nil {
		return nil, nil, errors.Wrap(err, "[remoteServices] postgres.Open")
	}
	a.db = db
	return client, postgres.NewStore(db), nil
}

// demoServices seeds an officer with a stored profile and a voter whose
// profile is provisioned on first login.
func demoServices() (identity.Service, users.UserRepo, error) {
	ids := fakeidentity.NewFakeIdentityService()
	ids.RotateOnPasswordChange = true
	repo := fakeuserrepo.NewFakeUserRepo()

	officer, err := ids.AddAccount(demoOfficerEmail, demoPassword, map[string]any{identity.MetadataUsername: "officer"})
	if err != nil {
		return nil, nil, errors.Wrap(err, "[demoServices] AddAccount")
	}
	repo.Put(&users.User{ID: officer.ID, Email: demoOfficerEmail, Username: "officer", Role: users.RoleOfficer})

	voter, err := ids.AddAccount(demoVoterEmail, demoPassword, map[string]any{identity.MetadataUsername: "voter"})
	if err != nil {
		return nil, nil, errors.Wrap(err, "[demoServices] AddAccount")
	}
	repo.PutRegistration(&users.Registration{
		ApplicantID: "demo-applicant",
		UserID:      voter.ID,
		Status:      "pending",
		Precinct:    utils.Ptr("P-001"),
	})

	log.Info().Str("officer", demoOfficerEmail).Str("voter", demoVoterEmail).Str("password", demoPassword).Msg("Demo accounts ready")
	return ids, repo, nil
}

func (a *app) metricsHandler(env string) http.Handler {
	mux := metrics.SetupMetricsRoute(a.registry)
	return httpmw.ChainMiddleware(mux.ServeHTTP, httpmw.Standard(log.Logger, env)...)
}

func (a *app) Close() {
	if a.reconciler != nil {
		a.reconciler.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Err(err).Msg("db.Close")
		}
	}
}
