package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/config"
	"github.com/noah-isme/gema-essay-api/internal/database"
	"github.com/noah-isme/gema-essay-api/internal/events"
	"github.com/noah-isme/gema-essay-api/internal/handler"
	"github.com/noah-isme/gema-essay-api/internal/service"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

// runtime owns the long-lived clients shared by every subcommand.
type runtime struct {
	cfg     config.Config
	logger  zerolog.Logger
	db      *gorm.DB
	redis   *redis.Client
	bus     events.Bus
	closers []func() error
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
}

func newRuntime(cfg config.Config, logger zerolog.Logger) *runtime {
	return &runtime{cfg: cfg, logger: logger}
}

// openDatabase connects to postgres and migrates the schema.
func (r *runtime) openDatabase() error {
	db, err := database.ConnectPostgres(r.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	r.db = db
	r.closers = append(r.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return nil
}

// openBus connects the configured event bus backend.
func (r *runtime) openBus() error {
	switch r.cfg.BusDriver {
	case config.BusDriverRedis:
		client, err := database.ConnectRedis(r.cfg.RedisURL)
		if err != nil {
			return err
		}
		r.redis = client
		r.closers = append(r.closers, client.Close)
		r.bus = events.NewRedisStreamBus(client, events.RedisStreamConfig{
			Consumer: r.cfg.BusConsumer,
			MaxLen:   r.cfg.BusMaxLen,
		}, r.logger)
	case config.BusDriverNATS:
		conn, err := database.ConnectNATS(r.cfg.NATSURL, r.cfg.AppName, r.logger)
		if err != nil {
			return err
		}
		bus, err := events.NewNATSStreamBus(conn, events.NATSStreamConfig{}, r.logger)
		if err != nil {
			conn.Close()
			return err
		}
		r.bus = bus
	case config.BusDriverMemory:
		r.logger.Warn().Msg("using in-memory event bus, failure events are not shared between processes")
		r.bus = events.NewMemoryBus()
	default:
		return fmt.Errorf("unknown event bus driver %q", r.cfg.BusDriver)
	}

	r.closers = append(r.closers, r.bus.Close)
	return nil
}

// newEvaluator builds the AI evaluation client for the configured provider.
func (r *runtime) newEvaluator() (*ai.Client, error) {
	prompt, err := ai.LoadPromptConfig(r.cfg.AIPromptFile)
	if err != nil {
		return nil, err
	}
	if r.cfg.AIModel != "" {
		prompt.Model = r.cfg.AIModel
	}

	var completer ai.Completer
	switch r.cfg.AIProvider {
	case "openai", "azure", "azure-openai":
		completer, err = ai.NewOpenAICompleter(ai.OpenAIConfig{
			APIKey:          r.cfg.OpenAIAPIKey,
			BaseURL:         r.cfg.OpenAIBaseURL,
			AzureEndpoint:   r.cfg.AzureOpenAIEndpoint,
			AzureAPIVersion: r.cfg.AzureOpenAIVersion,
			AzureDeployment: r.cfg.AzureOpenAIDeploy,
		})
	case "anthropic":
		completer, err = ai.NewAnthropicCompleter(ai.AnthropicConfig{
			APIKey:  r.cfg.AnthropicAPIKey,
			BaseURL: r.cfg.AnthropicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown ai provider %q", r.cfg.AIProvider)
	}
	if err != nil {
		return nil, err
	}

	client, err := ai.NewClient(completer, prompt, r.logger)
	if err != nil {
		return nil, err
	}
	return client.WithTimeout(r.cfg.AITimeout), nil
}

func (r *runtime) newDispatcher() (*service.NotificationDispatcher, error) {
	sender, err := service.NewAlertSender(r.cfg.AlertProvider, r.cfg.AlertSlackWebhook, r.cfg.AlertDiscordWebhook, r.logger)
	if err != nil {
		return nil, err
	}
	return service.NewNotificationDispatcher(r.bus, sender, service.DispatcherConfig{
		Topic:         r.cfg.BusTopic,
		Group:         r.cfg.BusGroup,
		RatePerSecond: r.cfg.AlertRatePerSecond,
	}, r.logger), nil
}

func (r *runtime) healthProbes() map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{}
	if r.db != nil {
		probes["database"] = func(ctx context.Context) error {
			sqlDB, err := r.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if r.redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return r.redis.Ping(ctx).Err()
		}
	}
	if natsBus, ok := r.bus.(*events.NATSStreamBus); ok {
		probes["nats"] = func(context.Context) error {
			if natsBus.Status() != nats.CONNECTED {
				return fmt.Errorf("nats connection %s", natsBus.Status())
			}
			return nil
		}
	}
	return probes
}

// close releases clients in reverse order of acquisition.
func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn().Err(err).Msg("error while closing dependency")
		}
	}
}
