package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/voter-registration/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: voterreg [flags] <command> [args]

commands:
  login <email> <password>
  signup <username> <email> <password>
  logout
  whoami
  profile <username>
  passwd <new-password> [current-password]
  reset <email>
  recover <access-token> <refresh-token> <new-password>
  watch

flags:
`

func main() {
	fs := flag.NewFlagSet("voterreg", flag.ExitOnError)
	demo := fs.Bool("demo", false, "use in-memory identity and profile services seeded with demo accounts")
	sessionPath := fs.String("session", defaultSessionPath(), "file the identity session is kept in between runs")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	if err := run(options{demo: *demo, sessionPath: *sessionPath, args: fs.Args()}); err != nil {
		log.Fatal().Err(err).Msg("voterreg failed")
	}
}

type options struct {
	demo        bool
	sessionPath string
	args        []string
}

func run(opts options) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, c, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if addr := c.GetMetricsAddr(); addr != "" {
		server := &http.Server{Addr: addr, Handler: app.metricsHandler(c.GetEnv())}
		go listenAndServe(server)
		defer func() {
			if err := shutdown(server); err != nil && returnError == nil {
				returnError = err
			}
		}()
	}

	return app.execute(ctx, opts.args)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Metrics listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voterreg-session.json"
	}
	return filepath.Join(home, ".voterreg", "session.json")
}
