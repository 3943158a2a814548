package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	zero "github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/internal/config"
	"github.com/sidereusnuntius/golivefyre/internal/postback"
	"github.com/sidereusnuntius/golivefyre/internal/state"
	"github.com/sidereusnuntius/golivefyre/livefyre"
	"github.com/spf13/pflag"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, st *state.State, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"sign": {
		usage: "sign key=value...          sign claims with the network key",
		run:   sign,
	},
	"validate": {
		usage: "validate TOKEN              check a token and print its claims",
		run:   validate,
	},
	"token": {
		usage: "token USER                  issue a session token for a user",
		flags: func(fs *pflag.FlagSet) {
			fs.String("display-name", "", "display name claim")
			fs.Duration("max-age", livefyre.DefaultTokenMaxAge, "token lifetime")
		},
		run: userToken,
	},
	"role": {
		usage: "role USER ROLE SCOPE [ID]   set a user's affiliation",
		run:   role,
	},
	"verify": {
		usage: "verify SIG CREATED          check a postback signature against the default site",
		run:   verify,
	},
	"postback-url": {
		usage: "postback-url URL            set the default site's postback url",
		run:   postbackURL,
	},
	"refresh": {
		usage: "refresh USER                ping the network to pull a user profile",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("defer", false, "enqueue the refresh instead of running it")
		},
		run: refresh,
	},
	"push": {
		usage: "push USER PROFILE           publish profile json for a user",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("defer", false, "enqueue the push instead of running it")
		},
		run: push,
	},
	"serve": {
		usage: "serve                       receive postbacks for the default site",
		run:   serve,
	},
}

func main() {
	zero.Logger = zero.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
			os.Exit(2)
		}
		zero.Error().Err(err).Send()
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}

	fs := pflag.NewFlagSet(config.Name+" "+args[0], pflag.ContinueOnError)
	config.Flags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.ReadConfig(fs)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	st, err := state.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer st.Close(context.Background())

	return cmd.run(ctx, st, fs)
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(os.Stderr, "usage: %s COMMAND [flags]\n\ncommands:\n", config.Name)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fs := pflag.NewFlagSet(config.Name, pflag.ContinueOnError)
	config.Flags(fs)
	fmt.Fprintf(os.Stderr, "\nflags:\n%s", fs.FlagUsages())
}

func sign(_ context.Context, st *state.State, fs *pflag.FlagSet) error {
	claims := livefyre.Claims{}
	for _, arg := range fs.Args() {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("claim %q is not key=value", arg)
		}
		claims[k] = v
	}
	if _, ok := claims["domain"]; !ok {
		claims["domain"] = st.Client.Host()
	}

	raw, err := st.Client.Sign(claims)
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func validate(_ context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return errUsage
	}
	claims, err := st.Client.Validate(fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(claims)
}

func userToken(_ context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return errUsage
	}
	displayName, _ := fs.GetString("display-name")
	maxAge, _ := fs.GetDuration("max-age")

	user, err := livefyre.ResolveUser(livefyre.UserID(fs.Arg(0)), st.Client)
	if err != nil {
		return err
	}
	user.DisplayName = displayName

	raw, err := user.Token(maxAge)
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func role(ctx context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() < 3 || fs.NArg() > 4 {
		return errUsage
	}
	err := st.Client.SetUserRole(ctx, livefyre.UserID(fs.Arg(0)), livefyre.Role(fs.Arg(1)), livefyre.Scope(fs.Arg(2)), fs.Arg(3))
	if err != nil {
		return err
	}
	zero.Info().Str("user", fs.Arg(0)).Str("role", fs.Arg(1)).Str("scope", fs.Arg(2)).Msg("role set")
	return nil
}

func verify(ctx context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() != 2 {
		return errUsage
	}
	site, err := st.Site()
	if err != nil {
		return err
	}
	if err = site.VerifySignature(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		return err
	}
	fmt.Println("valid")
	return nil
}

func postbackURL(ctx context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return errUsage
	}
	site, err := st.Site()
	if err != nil {
		return err
	}
	if err = site.SetPostbackURL(ctx, fs.Arg(0)); err != nil {
		return err
	}
	zero.Info().Str("site", site.ID).Str("url", fs.Arg(0)).Msg("postback url set")
	return nil
}

func refresh(ctx context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return errUsage
	}
	id, err := livefyre.ResolveUserID(livefyre.UserID(fs.Arg(0)))
	if err != nil {
		return err
	}

	if deferred, _ := fs.GetBool("defer"); deferred {
		if st.Queue == nil {
			return &livefyre.ConfigurationError{Field: "queue_db"}
		}
		return st.Queue.Refresh(ctx, id)
	}
	return st.Client.User(id, "").Refresh(ctx)
}

func push(ctx context.Context, st *state.State, fs *pflag.FlagSet) error {
	if fs.NArg() != 2 {
		return errUsage
	}
	id, err := livefyre.ResolveUserID(livefyre.UserID(fs.Arg(0)))
	if err != nil {
		return err
	}
	var profile map[string]any
	if err = json.Unmarshal([]byte(fs.Arg(1)), &profile); err != nil {
		return fmt.Errorf("profile is not a json object: %w", err)
	}

	if deferred, _ := fs.GetBool("defer"); deferred {
		if st.Queue == nil {
			return &livefyre.ConfigurationError{Field: "queue_db"}
		}
		return st.Queue.Push(ctx, id, profile)
	}
	if err = st.Client.User(id, "").Push(ctx, profile); err != nil {
		return err
	}
	zero.Info().Str("user", id).Msg("profile pushed")
	return nil
}

func serve(ctx context.Context, st *state.State, _ *pflag.FlagSet) error {
	site, err := st.Site()
	if err != nil {
		return err
	}
	if st.Queue != nil {
		st.Queue.Start(ctx)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	if st.Config.Debug {
		router.Use(middleware.Logger)
	}
	postback.Mount(router, site, onActivity(st), nil)

	s := &http.Server{
		Addr:              st.Config.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Shutdown(shutdown)
	}()

	zero.Info().Str("addr", s.Addr).Str("site", site.ID).Msg("started server")
	err = s.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// onActivity logs every postback and, when deferral is configured, schedules a profile refresh for the authors
// of new comments.
func onActivity(st *state.State) postback.Handler {
	return func(ctx context.Context, a *livefyre.Activity) error {
		zero.Info().
			Str("activity", a.ID).
			Str("type", a.Type()).
			Time("created", a.CreatedAt()).
			Msg("activity")

		if !a.IsComment() || st.Queue == nil {
			return nil
		}
		if id := a.User().ID; id != "" {
			return st.Queue.Refresh(ctx, id)
		}
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
