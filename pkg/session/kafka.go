// Package session publishes authentication-expiry events. A KafkaNavigator
// stands in for a browser redirect when the transport runs inside a service:
// the login flow is driven by whoever consumes the topic.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	corehttp "github.com/milan604/httpcore/pkg/http"
	"github.com/milan604/httpcore/pkg/json"
	"github.com/milan604/httpcore/pkg/utils"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "httpcore.session.expired"

// Expired is the event payload.
type Expired struct {
	LoginURL  string `json:"loginUrl"`
	From      string `json:"from"`
	RequestID string `json:"requestId,omitempty"`
	Service   string `json:"service,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MessageWriter is the subset of *kafka.Writer the navigator uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNavigator implements corehttp.Navigator by publishing Expired events.
type KafkaNavigator struct {
	writer  MessageWriter
	service string
	now     func() time.Time
}

var _ corehttp.Navigator = (*KafkaNavigator)(nil)

// Option configures a KafkaNavigator.
type Option func(*KafkaNavigator)

// WithService tags events with the publishing service and uses it as the
// message key.
func WithService(name string) Option {
	return func(n *KafkaNavigator) { n.service = name }
}

// WithWriter replaces the kafka writer.
func WithWriter(w MessageWriter) Option {
	return func(n *KafkaNavigator) { n.writer = w }
}

func withClock(now func() time.Time) Option {
	return func(n *KafkaNavigator) { n.now = now }
}

// NewKafkaNavigator writes to topic on brokers.
func NewKafkaNavigator(brokers []string, topic string, opts ...Option) (*KafkaNavigator, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	n := &KafkaNavigator{now: utils.NowUTC}
	for _, o := range opts {
		o(n)
	}
	if n.writer == nil {
		if len(brokers) == 0 {
			return nil, errors.New("session: no kafka brokers configured")
		}
		n.writer = &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		}
	}
	return n, nil
}

func (n *KafkaNavigator) RedirectToLogin(ctx context.Context, r corehttp.LoginRedirect) error {
	payload, err := json.Marshal(Expired{
		LoginURL:  r.LoginURL,
		From:      r.From,
		RequestID: r.RequestID,
		Service:   n.service,
		Timestamp: utils.FormatISO8601(n.now()),
	})
	if err != nil {
		return fmt.Errorf("session: encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(utils.Coalesce(n.service, r.RequestID)),
		Value: payload,
	}
	if r.RequestID != "" {
		msg.Headers = []kafka.Header{{Key: corehttp.HeaderRequestID, Value: []byte(r.RequestID)}}
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("session: publish: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNavigator) Close() error {
	return n.writer.Close()
}
