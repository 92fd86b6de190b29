package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/voter-registration/auth"
	"github.com/jrsteele09/voter-registration/internal/utils"
	"github.com/jrsteele09/voter-registration/routes"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	errUsage         = errors.New("wrong number of arguments, see -help")
	errCommandFailed = errors.New("command failed")
)

func (a *app) execute(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "login":
		err = a.login(ctx, rest)
	case "signup":
		err = expect(rest, 3, func() error {
			a.reconciler.SignUp(ctx, rest[0], rest[1], rest[2])
			return nil
		})
	case "logout":
		a.reconciler.Logout(ctx)
	case "whoami":
	case "profile":
		err = expect(rest, 1, func() error {
			return check(a.reconciler.UpdateUserProfile(ctx, &rest[0]))
		})
	case "passwd":
		err = a.passwd(ctx, rest)
	case "reset":
		err = expect(rest, 1, func() error {
			return check(a.reconciler.SendPasswordResetEmail(ctx, rest[0]))
		})
	case "recover":
		err = a.recover(ctx, rest)
	case "watch":
		a.watch(ctx)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return errors.Wrap(err, cmd)
	}
	return a.printState()
}

func (a *app) login(ctx context.Context, args []string) error {
	return expect(args, 2, func() error {
		a.reconciler.Login(ctx, args[0], args[1])
		return check(a.reconciler.State().IsAuthenticated)
	})
}

// passwd takes the new password and, from a signed-in profile, the current one.
func (a *app) passwd(ctx context.Context, args []string) error {
	if len(args) != 1 && len(args) != 2 {
		return errUsage
	}
	var current string
	if len(args) == 2 {
		current = args[1]
	}
	return check(a.reconciler.UpdateUserPassword(ctx, current, args[0]))
}

// recover completes the reset-password link flow.
func (a *app) recover(ctx context.Context, args []string) error {
	return expect(args, 3, func() error {
		if a.recovery == nil {
			return errors.New("password recovery needs the identity service, not -demo")
		}
		a.navigator.Navigate(routes.ResetPassword)
		session, err := a.recovery.ExchangeRecovery(ctx, args[0], args[1])
		if err != nil {
			return errors.Wrap(err, "ExchangeRecovery")
		}
		a.reconciler.Reconcile(ctx, session)
		return check(a.reconciler.UpdateUserPassword(ctx, "", args[2]))
	})
}

// watch prints every state change until interrupted.
func (a *app) watch(ctx context.Context) {
	cancel := a.reconciler.OnChange(func(s auth.State) {
		if err := a.printState(); err != nil {
			log.Err(err).Msg("printState")
		}
	})
	defer cancel()
	log.Info().Msg("Watching auth state, press Ctrl+C to stop")
	<-ctx.Done()
}

type stateView struct {
	Authenticated      bool   `json:"authenticated"`
	Location           string `json:"location"`
	ID                 string `json:"id,omitempty"`
	Email              string `json:"email,omitempty"`
	Username           string `json:"username,omitempty"`
	Role               string `json:"role,omitempty"`
	RegistrationStatus string `json:"registration_status,omitempty"`
	VoterID            string `json:"voter_id,omitempty"`
	Precinct           string `json:"precinct,omitempty"`
	Temporary          bool   `json:"temporary,omitempty"`
}

func (a *app) printState() error {
	state := a.reconciler.State()
	view := stateView{
		Authenticated: state.IsAuthenticated,
		Location:      a.navigator.Location(),
	}
	if u := state.User; u != nil {
		view.ID = u.ID
		view.Email = u.Email
		view.Username = u.Username
		view.Role = string(u.Role)
		view.RegistrationStatus = utils.Value(u.RegistrationStatus)
		view.VoterID = utils.Value(u.VoterID)
		view.Precinct = utils.Value(u.Precinct)
		view.Temporary = u.Temporary
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[printState] json.MarshalIndent")
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func expect(args []string, n int, fn func() error) error {
	if len(args) != n {
		return errUsage
	}
	return fn()
}

func check(ok bool) error {
	if !ok {
		return errCommandFailed
	}
	return nil
}
