package links

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/DeliveryReport/internal/broker/messages"
	"github.com/pkg/errors"
)

type Signer interface {
	Token(orderID string) string
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

// Issuer turns dispatched orders into signed report links.
type Issuer struct {
	signer   Signer
	baseURL  *url.URL
	producer Producer
	topic    string
	now      func() time.Time
}

func New(signer Signer, baseURL string, producer Producer, topic string) (*Issuer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse public base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("public base url %q must be absolute", baseURL)
	}
	return &Issuer{
		signer:   signer,
		baseURL:  u,
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}, nil
}

// Link builds the form URL for orderID. Quantities are optional pre-fills.
func (i *Issuer) Link(orderID string, transit, empty *int64) string {
	u := *i.baseURL
	if u.Path == "" {
		u.Path = "/"
	}
	q := url.Values{}
	q.Set("id", orderID)
	q.Set("token", i.signer.Token(orderID))
	if transit != nil {
		q.Set("transit", strconv.FormatInt(*transit, 10))
	}
	if empty != nil {
		q.Set("empty", strconv.FormatInt(*empty, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (i *Issuer) Issue(ctx context.Context, in messages.OrderDispatched) (messages.LinkIssued, error) {
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return messages.LinkIssued{}, errors.New("order_id is required")
	}
	out := messages.LinkIssued{
		OrderID:  orderID,
		URL:      i.Link(orderID, in.TransitQty, in.EmptyQty),
		IssuedAt: i.now().UTC(),
	}
	if err := i.producer.PublishJSON(ctx, i.topic, orderID, out); err != nil {
		return messages.LinkIssued{}, err
	}
	return out, nil
}

// Handle is the consumer callback for the dispatched topic. Malformed
// payloads are skipped so they do not block the partition.
func (i *Issuer) Handle(ctx context.Context, key, value []byte) error {
	var msg messages.OrderDispatched
	if err := json.Unmarshal(value, &msg); err != nil || strings.TrimSpace(msg.OrderID) == "" {
		return nil
	}
	_, err := i.Issue(ctx, msg)
	return err
}
