package nats_service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chuka-black-market/marketplace/models"
)

// NatsService is a relay bus backed by a NATS core subject. Core NATS keeps
// no history, so subscribers only see messages published after they joined.
type NatsService struct {
	nc      *nats.Conn
	subject string
}

// NewNatsService connects to NATS at url and publishes on subject.
func NewNatsService(url, subject string) (*NatsService, error) {
	nc, err := nats.Connect(url,
		nats.Name("chuka-black-market-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsService{nc: nc, subject: subject}, nil
}

// Close drains pending messages and closes the connection.
func (s *NatsService) Close() {
	if s.nc == nil {
		return
	}
	if err := s.nc.Drain(); err != nil {
		log.Printf("NATS drain failed: %v", err)
		s.nc.Close()
	}
}

// Publish sends msg to the relay subject.
func (s *NatsService) Publish(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish message to subject '%s': %w", s.subject, err)
	}
	return nil
}

// Subscribe calls handler for every message on the relay subject. The
// handler runs in the NATS delivery goroutine. The subscription is active
// on the server when Subscribe returns.
func (s *NatsService) Subscribe(handler func(msg *models.Message)) (func(), error) {
	sub, err := s.nc.Subscribe(s.subject, func(m *nats.Msg) {
		msg, err := decode(m.Data)
		if err != nil {
			log.Printf("Error unmarshaling message from subject '%s': %v", m.Subject, err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject '%s': %w", s.subject, err)
	}
	// Make sure the server knows the interest before anything is published.
	if err := s.nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription to '%s': %w", s.subject, err)
	}
	log.Printf("Subscribed to %s", s.subject)
	return func() {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			log.Printf("Failed to unsubscribe from %s: %v", s.subject, err)
		}
	}, nil
}

func encode(msg *models.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
