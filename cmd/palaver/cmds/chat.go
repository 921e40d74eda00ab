package cmds

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/palaver/pkg/driver"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/inference/factory"
	"github.com/go-go-golems/palaver/pkg/inference/toolloop"
	"github.com/go-go-golems/palaver/pkg/messagestore"
	"github.com/go-go-golems/palaver/pkg/messagestore/redis"
	"github.com/go-go-golems/palaver/pkg/metrics"
	"github.com/go-go-golems/palaver/pkg/roster"
	"github.com/go-go-golems/palaver/pkg/settings"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session with the agents of a scenario",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}

	f := cmd.Flags()
	f.String("scenario", "support", "Bundled scenario to run ("+joinNames(roster.Scenarios())+")")
	f.String("roster", "", "Roster file to run instead of a bundled scenario")
	f.String("store", "memory", "Message store (memory, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database")
	f.String("session-id", "", "Session id, resumes the redis log of an earlier session")
	f.Duration("session-ttl", 0, "Expiry of the redis log, 0 keeps it")
	f.String("metrics-addr", "", "Serve /metrics and /healthz on this address")
	f.Bool("render-markdown", false, "Render agent messages as markdown")
	f.Bool("show-routing", false, "Print selection and handoff decisions")
	f.Bool("dump-events", false, "Dump raw events as JSON to stderr")
	f.Int("max-iterations", toolloop.DefaultMaxIterations, "Maximum reasoning calls per agent turn")

	f.String("provider", string(settings.ProviderOpenAI), "Reasoning provider ("+joinNames(factory.SupportedProviders())+")")
	f.String("model", "", "Model, or the deployment name for azure")
	f.String("api-key", "", "API key of the provider")
	f.String("base-url", "", "Base URL of the provider, the resource endpoint for azure")
	f.String("api-version", "", "Azure OpenAI API version")
	f.String("script", "", "Rules file of the scripted provider (default: the roster's script)")
	f.Duration("timeout", settings.DefaultTimeout, "Timeout of one reasoning call")
	f.Int("max-retries", settings.DefaultMaxRetries, "Retries of a failed reasoning call")
	f.Int("max-tokens", 0, "Maximum tokens per completion")

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	chatSettings, err := settings.ChatFromViper(viper.GetViper())
	if err != nil {
		return err
	}
	reasoning, err := settings.ReasoningFromViper(viper.GetViper())
	if err != nil {
		return err
	}

	r, err := loadRoster(chatSettings)
	if err != nil {
		return err
	}
	script, err := r.Script()
	if err != nil {
		return err
	}

	m := metrics.New()
	svc, err := factory.NewService(reasoning, script, inference.WithObserver(m))
	if err != nil {
		return err
	}
	session, err := r.Build(roster.Deps{
		Service:       svc,
		Console:       os.Stdout,
		Metrics:       m,
		MaxIterations: viper.GetInt("max-iterations"),
		Model:         reasoning.Model,
	})
	if err != nil {
		return err
	}

	sessionID := chatSettings.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	store, closeStore, err := newStore(chatSettings, sessionID)
	if err != nil {
		return err
	}
	defer closeStore()

	routerOptions := []events.EventRouterOption{events.WithDumpWriter(os.Stderr)}
	if viper.GetBool("verbose") {
		routerOptions = append(routerOptions, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOptions...)
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	printerOptions := []events.PrinterOption{events.WithRouting(chatSettings.ShowRouting)}
	if chatSettings.RenderMarkdown {
		renderer, err := events.NewMarkdownRenderer()
		if err != nil {
			return err
		}
		printerOptions = append(printerOptions, events.WithMarkdown(renderer))
	}
	router.AddHandler("console", events.ChatTopic, events.ConsolePrinterFunc(os.Stdout, printerOptions...))
	if chatSettings.DumpEvents {
		router.AddHandler("dump", events.ChatTopic, router.DumpRawEvents)
	}

	d := driver.New(store, session.Registry, session.Strategy,
		append(session.DriverOptions(), driver.WithSessionID(sessionID))...,
	)
	log.Info().
		Str("roster", r.Name).
		Str("mode", string(r.Mode)).
		Str("provider", string(reasoning.Provider)).
		Str("session", sessionID).
		Msg("Starting chat")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return router.Run(ctx)
	})
	if chatSettings.MetricsAddr != "" {
		eg.Go(func() error {
			return metrics.Serve(ctx, chatSettings.MetricsAddr, metrics.NewHandler(m))
		})
	}
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return d.Run(events.WithEventSinks(ctx, router.Sink()), os.Stdin, os.Stdout)
	})

	return eg.Wait()
}

func loadRoster(s *settings.Chat) (*roster.Roster, error) {
	if s.Roster != "" {
		return roster.Load(s.Roster)
	}
	return roster.Scenario(s.Scenario)
}

func newStore(s *settings.Chat, sessionID string) (messagestore.Store, func(), error) {
	switch s.Store {
	case "redis":
		var opts []redis.Option
		if s.SessionTTL > 0 {
			opts = append(opts, redis.WithTTL(s.SessionTTL))
		}
		store := redis.New(s.RedisAddr, s.RedisPassword, s.RedisDB, sessionID, opts...)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Could not close redis store")
			}
		}, nil
	case "memory", "":
		return messagestore.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown store %s", s.Store)
	}
}
