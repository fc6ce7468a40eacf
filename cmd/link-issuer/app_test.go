package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/BearBump/DeliveryReport/config"
	"github.com/BearBump/DeliveryReport/internal/access"
	"github.com/BearBump/DeliveryReport/internal/broker/kafka"
	"github.com/BearBump/DeliveryReport/internal/broker/messages"
	"github.com/BearBump/DeliveryReport/internal/services/links"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	values [][]byte
	closed bool
}

func (c *fakeConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	for _, v := range c.values {
		if err := handler(ctx, nil, v); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

type recordingProducer struct {
	mu   sync.Mutex
	sent []messages.LinkIssued
	done chan struct{}
}

func (p *recordingProducer) PublishJSON(ctx context.Context, topic, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, v.(messages.LinkIssued))
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{PublicBaseURL: "https://report.example.com"},
		Reports: config.ReportsConfig{SecretSalt: "salt"},
		Kafka:   config.KafkaConfig{Host: "localhost", Port: 9092},
	}
}

func TestDefaultIssuerFactories_NonNil(t *testing.T) {
	f := defaultIssuerFactories()
	cfg := testConfig()

	c := f.newConsumer(cfg)
	_, ok := c.(*kafka.Consumer)
	require.True(t, ok)
	require.NoError(t, c.Close())

	p, closeFn := f.newProducer(cfg)
	require.NotNil(t, p)
	require.NoError(t, closeFn())
}

func TestTopicDefaults(t *testing.T) {
	cfg := &config.Config{}
	require.Equal(t, "order.dispatched", dispatchedTopic(cfg))
	require.Equal(t, "delivery.link.issued", linkIssuedTopic(cfg))
	require.Equal(t, "link-issuer", consumerGroup(cfg))

	cfg.Kafka = config.KafkaConfig{DispatchedTopic: "a", LinkIssuedTopic: "b", ConsumerGroup: "c"}
	require.Equal(t, "a", dispatchedTopic(cfg))
	require.Equal(t, "b", linkIssuedTopic(cfg))
	require.Equal(t, "c", consumerGroup(cfg))
}

func TestRunLinkIssuer_IssuesSignedLinks(t *testing.T) {
	transit := int64(12)
	payload, err := json.Marshal(messages.OrderDispatched{OrderID: "A1", TransitQty: &transit})
	require.NoError(t, err)

	cons := &fakeConsumer{values: [][]byte{[]byte("not json"), payload}}
	prod := &recordingProducer{done: make(chan struct{})}
	f := issuerFactories{
		newConsumer: func(cfg *config.Config) Consumer { return cons },
		newProducer: func(cfg *config.Config) (links.Producer, func() error) { return prod, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunLinkIssuer(ctx, testConfig(), f) }()

	<-prod.done
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.True(t, cons.closed)

	require.Len(t, prod.sent, 1)
	u, err := url.Parse(prod.sent[0].URL)
	require.NoError(t, err)
	require.Equal(t, "report.example.com", u.Host)
	q := u.Query()
	require.Equal(t, "A1", q.Get("id"))
	require.Equal(t, "12", q.Get("transit"))
	require.True(t, access.NewVerifier("salt").Verify("A1", q.Get("token")))
}

func TestRunLinkIssuer_RequiresSaltAndBrokers(t *testing.T) {
	f := issuerFactories{
		newConsumer: func(cfg *config.Config) Consumer { return &fakeConsumer{} },
		newProducer: func(cfg *config.Config) (links.Producer, func() error) { return &recordingProducer{}, nil },
	}

	cfg := testConfig()
	cfg.Reports.SecretSalt = ""
	require.Error(t, RunLinkIssuer(context.Background(), cfg, f))

	cfg = testConfig()
	cfg.Kafka.Host = ""
	require.Error(t, RunLinkIssuer(context.Background(), cfg, f))

	cfg = testConfig()
	cfg.Server.PublicBaseURL = "report.example.com"
	require.Error(t, RunLinkIssuer(context.Background(), cfg, f))
}

func TestRunWorkerHTTPServer_Config(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: "127.0.0.1:0",
			cfg:      testConfig(),
			onListen: func(httpAddr string) { addrCh <- httpAddr },
		})
	}()
	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "order.dispatched")
	require.NotContains(t, string(body), "salt")

	cancel()
	require.Error(t, <-errCh)
}
