package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"OrgVerify/config"
	"OrgVerify/kafka"
	"OrgVerify/models"
	"OrgVerify/rabbitmq"
	orgredis "OrgVerify/redis"
	"OrgVerify/server"
	"OrgVerify/services"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand runs the HTTP API, the live channel and the inbound consumer
// until interrupted.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the API and websocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply migrations before serving",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, c.Bool("migrate"))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	db, err := server.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}
	if migrate {
		if err := models.AutoMigrateAll(db); err != nil {
			return fmt.Errorf("failed to auto-migrate database: %w", err)
		}
	}

	deps := server.Deps{DB: db}
	if cfg.Redis.Enabled {
		rdb, err := orgredis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		deps.Redis = rdb.Client
	}

	publisher, closePublisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()
	deps.Publisher = publisher

	s, err := server.New(cfg, deps)
	if err != nil {
		return err
	}

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled && cfg.Kafka.InboundTopic != "" {
		saramaCfg, err := kafka.NewSaramaConfig(&cfg.Kafka)
		if err != nil {
			return err
		}
		consumer, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
			[]string{cfg.Kafka.InboundTopic}, saramaCfg, kafka.NewNotificationHandler(s.Notifications))
		if err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
		defer consumer.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(cfg.Server.Addr)
	})
	if s.Presence != nil {
		g.Go(func() error {
			return s.Presence.Run(gctx)
		})
	}
	if consumer != nil {
		g.Go(func() error {
			log.Info().Str("topic", cfg.Kafka.InboundTopic).Msg("consuming inbound events")
			return consumer.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newPublisher picks kafka, then rabbitmq, else drops events.
func newPublisher(ctx context.Context, cfg *config.Config) (services.EventPublisher, func(), error) {
	switch {
	case cfg.Kafka.Enabled:
		saramaCfg, err := kafka.NewSaramaConfig(&cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, saramaCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("publishing events to kafka")
		return producer, func() { producer.Close() }, nil
	case cfg.RabbitMQ.Enabled:
		publisher, err := rabbitmq.NewPublisher(ctx, &cfg.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("publishing events to rabbitmq")
		return publisher, func() { publisher.Close() }, nil
	default:
		log.Warn().Msg("no event broker configured, domain events are dropped")
		return services.NoopPublisher, func() {}, nil
	}
}
