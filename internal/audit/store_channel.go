package audit

import (
	"context"
	"fmt"
)

// ChannelStore enqueues events for a Worker, keeping slow sinks off the
// request path. A full buffer fails the append rather than blocking a
// request; the publisher's caller decides whether that matters.
type ChannelStore chan<- Event

func (c ChannelStore) Append(ctx context.Context, event Event) error {
	select {
	case c <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("audit: buffer full, event dropped")
	}
}
