package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"accountd/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Event is what the external mail relay consumes. The body is rendered here
// so the relay stays a dumb sender.
type Event struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Template string    `json:"template"`
	At       time.Time `json:"at"`
}

type KafkaConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

// KafkaMailer publishes rendered mail events for an out-of-process relay.
// Like every Mailer, publish failure is the caller's to log, never to roll
// back on.
type KafkaMailer struct {
	writer   *kafka.Writer
	renderer service.TemplateRenderer
}

func NewKafkaMailer(cfg KafkaConfig, renderer service.TemplateRenderer) *KafkaMailer {
	var transport *kafka.Transport
	if cfg.Username != "" {
		transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{},
		}
	}
	return &KafkaMailer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Broker),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
			WriteTimeout: 10 * time.Second,
		},
		renderer: renderer,
	}
}

func (m *KafkaMailer) SendVerification(ctx context.Context, to, code string) error {
	return m.publish(ctx, to, TemplateVerification, code)
}

func (m *KafkaMailer) SendPasswordRestore(ctx context.Context, to, code string) error {
	return m.publish(ctx, to, TemplateRestorePassword, code)
}

func (m *KafkaMailer) publish(ctx context.Context, to, tmpl, code string) error {
	body, err := m.renderer.Render(tmpl, map[string]string{"Code": code})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Event{
		To:       to,
		Subject:  Subject(tmpl),
		Body:     body,
		Template: tmpl,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(to),
		Value: payload,
	})
}

func (m *KafkaMailer) Close() error { return m.writer.Close() }
