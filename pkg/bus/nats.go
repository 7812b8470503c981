package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// HandlerFunc processes a single raw message from a subject.
type HandlerFunc func(ctx context.Context, msg []byte) error

// Subscription is a handle to an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Publisher publishes raw messages to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg []byte) error
}

// Subscriber subscribes a handler to a subject.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler HandlerFunc) (Subscription, error)
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, msg []byte) error {
	return p.conn.Publish(subject, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, subject string, handler HandlerFunc) (Subscription, error) {
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		_ = handler(ctx, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
