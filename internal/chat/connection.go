package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/wire"
)

const (
	// Time allowed to write a single frame.
	writeWait = 10 * time.Second

	// Time allowed for the opening handshake.
	handshakeTimeout = 10 * time.Second

	// Outbound frames buffered per connection.
	sendQueueSize = 64
)

var (
	// ErrNotOpen is returned by Send while no connection is open.
	ErrNotOpen = errors.New("connection is not open")

	// ErrSendQueueFull is returned when the writer falls behind.
	ErrSendQueueFull = errors.New("send queue is full")
)

type outbound struct {
	data   []byte
	result chan error
}

// liveConn is the open connection plus its pumps' lifetime.
type liveConn struct {
	conn   Conn
	queue  chan outbound
	cancel context.CancelFunc
}

// dialHandoff carries a dialed connection from the dial goroutine to the
// loop. Whoever abandons the dial owns a connection that was never taken.
type dialHandoff struct {
	mu        sync.Mutex
	conn      Conn
	abandoned bool
}

func (h *dialHandoff) deliver(conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.abandoned {
		return false
	}
	h.conn = conn
	return true
}

func (h *dialHandoff) take() Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn := h.conn
	h.conn = nil
	return conn
}

func (h *dialHandoff) abandon() Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.abandoned = true
	conn := h.conn
	h.conn = nil
	return conn
}

// ConnectionManager owns the lifecycle of one room's connection. Every method
// must run on the room's event loop; network I/O happens on pump goroutines
// that report back through post, tagged with the generation they belong to.
// Anything reported by a superseded generation is dropped.
type ConnectionManager struct {
	dialer  Dialer
	baseURL string
	roomID  string
	clock   Clock
	policy  *ReconnectPolicy
	post    func(func()) bool
	logger  *slog.Logger

	onState func(StateChange)
	onFrame func([]byte)

	state      State
	credential string
	gen        uint64
	conn       *liveConn
	dialCancel context.CancelFunc
	pending    *dialHandoff
	retryTimer Timer
}

func newConnectionManager(baseURL string, dialer Dialer, clock Clock, policy *ReconnectPolicy, post func(func()) bool, logger *slog.Logger) *ConnectionManager {
	return &ConnectionManager{
		dialer:  dialer,
		baseURL: strings.TrimRight(baseURL, "/"),
		clock:   clock,
		policy:  policy,
		post:    post,
		logger:  logger,
		onState: func(StateChange) {},
		onFrame: func([]byte) {},
		state:   StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() State {
	return m.state
}

// Open starts connecting to roomID with credential. Any previous connection,
// pending dial or reconnect timer is released first.
func (m *ConnectionManager) Open(ctx context.Context, roomID, credential string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.release()
	m.policy.Reset()
	m.roomID = roomID

	if credential == "" {
		ce := Classify(CodeAuthMissing, "no credential in session")
		m.transition(StateFailed, StateChange{Err: ce})
		return ce
	}

	m.credential = credential
	m.transition(StateConnecting, StateChange{})
	m.dial()
	return nil
}

// Reset reopens the last room with the last credential. It is how the user
// leaves StateFailed.
func (m *ConnectionManager) Reset(ctx context.Context) error {
	return m.Open(ctx, m.roomID, m.credential)
}

// Close releases the connection and returns to Disconnected. It is safe to
// call in any state.
func (m *ConnectionManager) Close() {
	m.release()
	m.policy.Reset()
	if m.state != StateDisconnected {
		m.transition(StateDisconnected, StateChange{})
	}
}

// Send queues a frame on the open connection. The returned channel yields
// the write result.
func (m *ConnectionManager) Send(ctx context.Context, frame wire.Outbound) (<-chan error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.state != StateOpen || m.conn == nil {
		return nil, ErrNotOpen
	}

	data, err := wire.Encode(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", frame.OutboundType(), err)
	}

	result := make(chan error, 1)
	select {
	case m.conn.queue <- outbound{data: data, result: result}:
		return result, nil
	default:
		return nil, ErrSendQueueFull
	}
}

// endpoint builds the room URL. The credential travels in the query string,
// so this value must never be logged.
func (m *ConnectionManager) endpoint() string {
	q := url.Values{"token": {m.credential}}
	return fmt.Sprintf("%s/ws/chat/%s/?%s", m.baseURL, url.PathEscape(m.roomID), q.Encode())
}

func (m *ConnectionManager) dial() {
	m.gen++
	gen := m.gen
	endpoint := m.endpoint()

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	m.dialCancel = cancel
	h := &dialHandoff{}
	m.pending = h

	m.logger.Info("Connecting to room", "room_id", m.roomID, "attempt", m.policy.Attempt())

	go func() {
		conn, err := m.dialer.Dial(ctx, endpoint)
		if conn != nil && !h.deliver(conn) {
			_ = conn.Close(CodeNormal, "room closed")
			return
		}
		// An op that is queued but never run is covered by release.
		if !m.post(func() { m.dialed(gen, h, err) }) {
			if conn := h.abandon(); conn != nil {
				_ = conn.Close(CodeNormal, "room closed")
			}
		}
	}()
}

func (m *ConnectionManager) dialed(gen uint64, h *dialHandoff, err error) {
	conn := h.take()
	if gen != m.gen {
		if conn != nil {
			go conn.Close(CodeNormal, "superseded")
		}
		return
	}
	m.pending = nil
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}

	if err != nil {
		m.logger.Warn("Dial failed", "room_id", m.roomID, "error", err)
		ce := Classify(CodeAbnormal, err.Error())
		// A failed handshake during a backoff run is one more failed
		// attempt, not a reason to stop retrying.
		if m.state == StateReconnecting {
			ce.Kind = CloseRetryable
			ce.Key = Classify(CodeInternalError, "").Key
		}
		m.handleClosure(ce)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc := &liveConn{conn: conn, queue: make(chan outbound, sendQueueSize), cancel: cancel}
	m.conn = lc
	m.policy.Reset()

	m.logger.Info("Connected to room", "room_id", m.roomID)
	m.transition(StateOpen, StateChange{})

	go m.readPump(ctx, gen, conn)
	go writePump(ctx, lc)
}

func (m *ConnectionManager) readPump(ctx context.Context, gen uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			frame := closeFrameOf(err)
			m.post(func() { m.closed(gen, frame) })
			return
		}
		if !m.post(func() { m.frame(gen, data) }) {
			return
		}
	}
}

func writePump(ctx context.Context, lc *liveConn) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case out := <-lc.queue:
					out.result <- ErrNotOpen
				default:
					return
				}
			}
		case out := <-lc.queue:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := lc.conn.Write(wctx, out.data)
			cancel()
			out.result <- err
		}
	}
}

func (m *ConnectionManager) frame(gen uint64, data []byte) {
	if gen != m.gen {
		return
	}
	m.onFrame(data)
}

func (m *ConnectionManager) closed(gen uint64, frame *CloseFrame) {
	if gen != m.gen || m.conn == nil {
		return
	}
	m.conn.cancel()
	m.conn = nil
	m.handleClosure(Classify(frame.Code, frame.Reason))
}

func (m *ConnectionManager) handleClosure(ce *CloseError) {
	m.logger.Info("Connection closed", "room_id", m.roomID, "code", ce.Code, "kind", ce.Kind.String(), "reason", ce.Reason)

	switch ce.Kind {
	case CloseTerminal:
		m.transition(StateFailed, StateChange{Err: ce})
	case CloseRetryable:
		delay, ok := m.policy.Next()
		if !ok {
			m.logger.Warn("Reconnect attempts exhausted", "room_id", m.roomID, "max_attempts", m.policy.MaxAttempts())
			m.transition(StateFailed, StateChange{Err: fmt.Errorf("%w: %w", domain.ErrReconnectExhausted, ce)})
			return
		}
		m.scheduleReconnect(delay)
		m.transition(StateReconnecting, StateChange{Err: ce, Delay: delay})
	default:
		m.transition(StateDisconnected, StateChange{Err: ce})
	}
}

func (m *ConnectionManager) scheduleReconnect(delay time.Duration) {
	gen := m.gen
	m.retryTimer = m.clock.AfterFunc(delay, func() {
		m.post(func() { m.retry(gen) })
	})
}

func (m *ConnectionManager) retry(gen uint64) {
	if gen != m.gen || m.state != StateReconnecting {
		return
	}
	m.retryTimer = nil
	m.dial()
}

// release invalidates the current generation and frees everything it holds.
func (m *ConnectionManager) release() {
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if h := m.pending; h != nil {
		m.pending = nil
		if conn := h.abandon(); conn != nil {
			go conn.Close(CodeNormal, "client closed")
		}
	}
	if lc := m.conn; lc != nil {
		m.conn = nil
		go func() {
			_ = lc.conn.Close(CodeNormal, "client closed")
			lc.cancel()
		}()
	}
}

func (m *ConnectionManager) transition(to State, change StateChange) {
	change.RoomID = m.roomID
	change.From = m.state
	change.To = to
	change.Attempt = m.policy.Attempt()
	change.MaxAttempts = m.policy.MaxAttempts()
	m.state = to
	m.onState(change)
}
