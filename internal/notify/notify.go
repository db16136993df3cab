package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier delivers a message to a logical channel.
type Notifier interface {
	Send(ctx context.Context, channel string, msg Message) error
}

// Transport delivers a message to one concrete endpoint.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// Multi delivers to every transport and reports all failures.
type Multi []Transport

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var err error
	for _, t := range m {
		if t == nil {
			continue
		}
		err = multierr.Append(err, t.Deliver(ctx, msg))
	}
	return err
}
