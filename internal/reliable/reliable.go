package reliable

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

var (
	ErrNoReply  = errors.New("no reply")
	ErrNoExpect = errors.New("request names no expected reply kind")
)

// Conn is the part of a transport endpoint the helper needs.
type Conn interface {
	Send(m protocol.Message, to net.Addr) error
	Queue() *transport.Queue
}

type Request struct {
	Msg    protocol.Message
	To     net.Addr
	Expect []protocol.Kind
	// Match optionally narrows which decoded reply counts.
	Match func(protocol.Message) bool
}

type Reply struct {
	Packet   transport.Packet
	Message  protocol.Message
	Attempts int
}

type Options struct {
	Interval time.Duration
	// MaxAttempts bounds the number of sends; 0 retries until ctx is done.
	MaxAttempts int
}

func DefaultOptions() Options {
	return Options{Interval: 200 * time.Millisecond, MaxAttempts: 50}
}

// SendAndRetry sends req.Msg and keeps resending it every interval until a
// reply of an expected kind shows up in the inbound queue. The matching reply
// is removed from the queue exactly once; the peer must treat repeated
// requests as idempotent.
func SendAndRetry(ctx context.Context, c Conn, req Request, opts Options) (Reply, error) {
	if len(req.Expect) == 0 {
		return Reply{}, ErrNoExpect
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}

	attempts := 0
	send := func() error {
		attempts++
		if err := c.Send(req.Msg, req.To); err != nil {
			return fmt.Errorf("send %s: %w", protocol.KindOf(req.Msg), err)
		}
		return nil
	}
	if err := send(); err != nil {
		return Reply{}, err
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case <-ticker.C:
		}

		if p, m, ok := c.Queue().FindAndRemoveFunc(req.Match, req.Expect...); ok {
			return Reply{Packet: p, Message: m, Attempts: attempts}, nil
		}
		if opts.MaxAttempts > 0 && attempts >= opts.MaxAttempts {
			return Reply{}, fmt.Errorf("%s after %d attempts: %w", protocol.KindOf(req.Msg), attempts, ErrNoReply)
		}
		if err := send(); err != nil {
			return Reply{}, err
		}
	}
}
