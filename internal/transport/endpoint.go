package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// Endpoint owns one bound datagram socket. Run feeds the inbound Queue from
// a dedicated receive loop; Send writes synchronously.
type Endpoint struct {
	conn  net.PacketConn
	queue *Queue
	bad   *BadClients
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Endpoint)

func WithLogger(log *zap.Logger) Option {
	return func(e *Endpoint) { e.log = log }
}

func WithQueueCapacity(n int) Option {
	return func(e *Endpoint) { e.queue = NewQueue(n) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Endpoint) { e.now = now }
}

// Listen binds a UDP socket on addr. Failing to bind is fatal for callers.
func Listen(addr string, opts ...Option) (*Endpoint, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an already bound socket.
func New(conn net.PacketConn, opts ...Option) *Endpoint {
	e := &Endpoint{
		conn:  conn,
		queue: NewQueue(0),
		bad:   NewBadClients(),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Endpoint) Addr() net.Addr          { return e.conn.LocalAddr() }
func (e *Endpoint) Queue() *Queue           { return e.queue }
func (e *Endpoint) BadClients() *BadClients { return e.bad }
func (e *Endpoint) Close() error            { return e.conn.Close() }

// Run is the receive loop. It returns nil once ctx is done or the socket is
// closed, and only returns an error for unexpected read failures.
func (e *Endpoint) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, protocol.MaxSize+1)
	for {
		n, from, err := e.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			// ICMP port-unreachable and friends surface here on some
			// platforms; the peer is at fault, not the socket.
			if from != nil {
				e.bad.Mark(from)
				e.log.Debug("read error", zap.Stringer("from", from), zap.Error(err))
				continue
			}
			e.log.Warn("read error", zap.Error(err))
			continue
		}

		if n <= 0 || n > protocol.MaxSize {
			e.bad.Mark(from)
			e.log.Debug("dropped datagram",
				zap.Stringer("from", from),
				zap.Int("size", n),
			)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if e.queue.Push(Packet{From: from, At: e.now(), Data: data}) {
			e.log.Warn("inbound queue full, dropped oldest packet")
		}
	}
}

// Send encodes m and writes it to to. Write failures mark the destination as
// a bad client and are not returned; only encoding errors are.
func (e *Endpoint) Send(m protocol.Message, to net.Addr) error {
	data, err := protocol.Marshal(m)
	if err != nil {
		return err
	}
	e.SendRaw(data, to)
	return nil
}

// SendRaw writes an already encoded record. It reports whether the write
// succeeded.
func (e *Endpoint) SendRaw(data []byte, to net.Addr) bool {
	if _, err := e.conn.WriteTo(data, to); err != nil {
		e.bad.Mark(to)
		e.log.Warn("send failed", zap.Stringer("to", to), zap.Error(err))
		return false
	}
	return true
}
