package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/clients"
	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/config"
	"github.com/mcdev12/quizclient/go/internal/quiz/session"
	"github.com/mcdev12/quizclient/go/internal/quiz/view"
)

func main() {
	var (
		role       = flag.String("role", "player", "session role: player or host")
		code       = flag.String("code", "", "session code to join")
		name       = flag.String("name", "", "player name")
		create     = flag.Bool("create", false, "create a new session and host it")
		configPath = flag.String("config", "", "path to a YAML config file")
	)
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identity, err := resolveIdentity(ctx, cfg, *role, *code, *name, *create)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve session identity")
	}

	if err := run(ctx, cfg, identity); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("session ended with an error")
		os.Exit(1)
	}
}

// resolveIdentity creates or joins a session through the lobby endpoints. A host that
// already holds a code skips the lobby.
func resolveIdentity(ctx context.Context, cfg config.Config, role, code, name string, create bool) (models.SessionIdentity, error) {
	lobby := clients.NewLobbyClient(cfg.Server.URL)
	if create {
		identity, err := lobby.CreateSession(ctx)
		if err != nil {
			return models.SessionIdentity{}, err
		}
		fmt.Printf("Created session %s\n", identity.Code)
		return identity, nil
	}

	r, err := models.ParseRole(role)
	if err != nil {
		return models.SessionIdentity{}, err
	}
	if r == models.RoleHost {
		return models.NewHostIdentity(code)
	}
	return lobby.JoinSession(ctx, code, name)
}

func run(ctx context.Context, cfg config.Config, identity models.SessionIdentity) error {
	services, err := setupServices(ctx, cfg, identity)
	if err != nil {
		return err
	}
	defer services.Close()

	runner, err := session.New(session.Config{
		Identity:         identity,
		Dialer:           cfg.Dialer(),
		Connection:       cfg.ConnectionConfig(),
		QuestionDuration: cfg.Timing.QuestionDuration,
		Skew:             cfg.Skew(),
		TransitionDelay:  cfg.Timing.TransitionDelay,
		NoticeDuration:   cfg.Timing.NoticeDuration,
		Metrics:          services.Metrics,
	}, services.Options...)
	if err != nil {
		return err
	}

	log.Info().
		Str("session_code", identity.Code).
		Str("role", string(identity.Role)).
		Str("participant", identity.Participant()).
		Str("transport", cfg.Server.Transport).
		Msg("starting quiz session")

	go readIntents(ctx, runner, identity.Role)
	return runner.Run(ctx)
}

// readIntents turns stdin lines into intents until stdin closes or the runner stops.
func readIntents(ctx context.Context, runner *session.Runner, role models.Role) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		in, ok := view.ParseIntent(role, scanner.Text())
		if !ok {
			fmt.Println("Unknown command")
			continue
		}
		if err := runner.Submit(ctx, in); err != nil {
			return
		}
	}
}
