package main

import (
	"context"
	"log/slog"

	"github.com/BearBump/DeliveryReport/config"
	"github.com/BearBump/DeliveryReport/internal/access"
	"github.com/BearBump/DeliveryReport/internal/broker/kafka"
	"github.com/BearBump/DeliveryReport/internal/services/links"
	"github.com/pkg/errors"
)

type Consumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
	Close() error
}

type issuerFactories struct {
	newConsumer func(cfg *config.Config) Consumer
	newProducer func(cfg *config.Config) (links.Producer, func() error)
}

func defaultIssuerFactories() issuerFactories {
	return issuerFactories{
		newConsumer: func(cfg *config.Config) Consumer {
			return kafka.NewConsumer(cfg.KafkaBrokers(), dispatchedTopic(cfg), consumerGroup(cfg))
		},
		newProducer: func(cfg *config.Config) (links.Producer, func() error) {
			p := kafka.NewProducer(cfg.KafkaBrokers())
			return p, p.Close
		},
	}
}

func dispatchedTopic(cfg *config.Config) string {
	if cfg.Kafka.DispatchedTopic != "" {
		return cfg.Kafka.DispatchedTopic
	}
	return "order.dispatched"
}

func linkIssuedTopic(cfg *config.Config) string {
	if cfg.Kafka.LinkIssuedTopic != "" {
		return cfg.Kafka.LinkIssuedTopic
	}
	return "delivery.link.issued"
}

func consumerGroup(cfg *config.Config) string {
	if cfg.Kafka.ConsumerGroup != "" {
		return cfg.Kafka.ConsumerGroup
	}
	return "link-issuer"
}

func RunLinkIssuer(ctx context.Context, cfg *config.Config, f issuerFactories) error {
	if cfg.Reports.SecretSalt == "" {
		return errors.New("SECRET_SALT is required")
	}
	if len(cfg.KafkaBrokers()) == 0 {
		return errors.New("kafka.host is required")
	}

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}

	issuer, err := links.New(access.NewVerifier(cfg.Reports.SecretSalt), cfg.Server.PublicBaseURL, producer, linkIssuedTopic(cfg))
	if err != nil {
		return err
	}

	consumer := f.newConsumer(cfg)
	defer consumer.Close()

	slog.Info("link issuer started",
		"from", dispatchedTopic(cfg),
		"to", linkIssuedTopic(cfg),
		"group", consumerGroup(cfg),
	)
	return consumer.Consume(ctx, issuer.Handle)
}
