package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

type natsPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url, or to nats.DefaultURL when url is empty.
func NewNATSPublisher(url string, opts ...nats.Option) (Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts = append([]nats.Option{nats.Name("dbchain")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &natsPublisher{nc: nc}, nil
}

// Publish sends the payload and waits for the server to acknowledge the
// flush, bounded by ctx.
func (p *natsPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := p.nc.Publish(subject, payload); err != nil {
		return err
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *natsPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
