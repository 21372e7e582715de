package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Config describes the NATS endpoint and the JetStream stream events are kept in.
type Config struct {
	URL string
	// Stream is created on connect when missing. Empty skips stream provisioning.
	Stream   string
	Subjects []string
	MaxAge   time.Duration
}

// Bus wraps a NATS JetStream connection for publishing and consuming events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to cfg.URL and makes sure the configured stream exists.
func New(cfg Config, opts ...nats.Option) (*Bus, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	b := &Bus{conn: nc, js: js}
	if cfg.Stream != "" {
		if err := b.ensureStream(cfg); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *Bus) ensureStream(cfg Config) error {
	_, err := b.js.StreamInfo(cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", cfg.Stream, err)
	}

	subjects := cfg.Subjects
	if len(subjects) == 0 {
		subjects = []string{cfg.Stream + ".>"}
	}
	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: subjects,
		MaxAge:   cfg.MaxAge,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// Close drains the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj. Each call carries a fresh message
// id so JetStream drops duplicates from client retries.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil || b.js == nil {
		return errors.New("nil bus")
	}

	msg, err := NewMessage(subj, v)
	if err != nil {
		return err
	}

	_, err = b.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// NewMessage builds the NATS message Publish sends.
func NewMessage(subj string, v any) (*nats.Msg, error) {
	if strings.TrimSpace(subj) == "" {
		return nil, errors.New("subject is required")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", subj, err)
	}

	msg := nats.NewMsg(subj)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Header.Set("Content-Type", "application/json")
	return msg, nil
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// Subscribe creates a durable consumer on subj and invokes fn for each message. Messages
// are acked when fn succeeds and nacked otherwise. An empty durable name creates an
// ephemeral consumer.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil || b.js == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	handler := func(msg *nats.Msg) {
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := fn(handlerCtx, msg.Data); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	opts := []nats.SubOpt{nats.ManualAck(), nats.AckExplicit()}
	if durable != "" {
		opts = append(opts, nats.Durable(durable))
	}

	sub, err := b.js.Subscribe(subj, handler, opts...)
	if err != nil {
		return nil, err
	}

	s := &subscription{sub: sub}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}
