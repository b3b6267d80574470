package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/i18n"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/session"
	"github.com/nfrund/roomchat/internal/wire"
)

const (
	DefaultMaxAttempts     = 5
	DefaultBaseDelay       = time.Second
	DefaultMaxDelay        = 10 * time.Second
	DefaultTypingStopDelay = 2 * time.Second
	DefaultTypingInterval  = 250 * time.Millisecond
	DefaultRefreshInterval = 30 * time.Second

	loopQueueSize   = 256
	outboxQueueSize = 256
)

// ErrRoomClosed is returned by every Room method after Close.
var ErrRoomClosed = errors.New("room is closed")

// Option configures a Room.
type Option func(*Room)

// WithClock replaces the wall clock. Tests use it to drive timers.
func WithClock(c Clock) Option {
	return func(r *Room) {
		r.clock = c
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(r *Room) {
		r.dialer = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Room) {
		r.logger = l
	}
}

// WithPublisher sets where room events are published.
func WithPublisher(p pubsub.Publisher) Option {
	return func(r *Room) {
		r.publisher = p
	}
}

// WithTranslator sets the language of status and notice strings.
func WithTranslator(tr *i18n.Translator) Option {
	return func(r *Room) {
		r.tr = tr
	}
}

// WithRoomName sets the display name; the room ID is shown otherwise.
func WithRoomName(name string) Option {
	return func(r *Room) {
		r.name = name
	}
}

// WithReconnect configures the backoff: the n-th delay is
// min(base*2^n, max), for at most maxAttempts attempts.
func WithReconnect(base, max time.Duration, maxAttempts int) Option {
	return func(r *Room) {
		r.baseDelay = base
		r.maxDelay = max
		r.maxAttempts = maxAttempts
	}
}

// WithTyping configures the typing stop delay and the minimum interval
// between typing start signals.
func WithTyping(stopDelay, minInterval time.Duration) Option {
	return func(r *Room) {
		r.typingDelay = stopDelay
		r.typingInterval = minInterval
	}
}

// WithRefreshInterval sets how often EventRefresh is published so relative
// times can be redrawn. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Room) {
		r.refreshInterval = d
	}
}

// Room is one chat room session. All state lives on a single event loop;
// wire reads, timer callbacks and public calls are posted to it as closures
// and run one at a time.
type Room struct {
	id        string
	name      string
	baseURL   string
	store     session.Store
	clock     Clock
	dialer    Dialer
	tr        *i18n.Translator
	publisher pubsub.Publisher
	logger    *slog.Logger

	baseDelay       time.Duration
	maxDelay        time.Duration
	maxAttempts     int
	typingDelay     time.Duration
	typingInterval  time.Duration
	refreshInterval time.Duration

	ops       chan func()
	outbox    chan func() error
	quit      chan struct{}
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once

	// Loop-confined.
	conn         *ConnectionManager
	dedupe       *Deduplicator
	buffer       *OrderingBuffer
	presence     *PresenceTracker
	typing       *TypingDebouncer
	observers    []func(StateChange)
	lastChange   StateChange
	status       string
	draft        string
	refreshTimer Timer
	refreshGen   uint64
}

// NewRoom creates a session for roomID and starts its event loop. wsBaseURL
// is the websocket origin, e.g. ws://localhost:8001. The credential and
// username are read from store on every Open.
func NewRoom(roomID string, store session.Store, wsBaseURL string, opts ...Option) *Room {
	r := &Room{
		id:              roomID,
		baseURL:         wsBaseURL,
		store:           store,
		clock:           SystemClock{},
		dialer:          WebsocketDialer{},
		tr:              i18n.New("en"),
		publisher:       pubsub.Discard{},
		baseDelay:       DefaultBaseDelay,
		maxDelay:        DefaultMaxDelay,
		maxAttempts:     DefaultMaxAttempts,
		typingDelay:     DefaultTypingStopDelay,
		typingInterval:  DefaultTypingInterval,
		refreshInterval: DefaultRefreshInterval,
		ops:             make(chan func(), loopQueueSize),
		outbox:          make(chan func() error, outboxQueueSize),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		drained:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "chat_room", "room_id", roomID)
	}

	policy := NewReconnectPolicy(r.baseDelay, r.maxDelay, r.maxAttempts)
	r.conn = newConnectionManager(wsBaseURL, r.dialer, r.clock, policy, r.post, r.logger)
	r.conn.onState = r.handleState
	r.conn.onFrame = r.handleFrame
	r.dedupe = NewDeduplicator()
	r.buffer = NewOrderingBuffer()
	r.presence = NewPresenceTracker(store.Username())
	r.typing = NewTypingDebouncer(r.clock, r.typingDelay, r.typingInterval, r.sendTyping, r.post)
	r.lastChange = StateChange{RoomID: roomID, To: StateDisconnected, MaxAttempts: r.maxAttempts}

	go r.run()
	go r.publishLoop()
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Open connects using the session's current credential. Without a
// credential it fails with domain.ErrAuthMissing and never dials.
func (r *Room) Open(ctx context.Context) error {
	var err error
	if cerr := r.call(func() {
		r.presence.SetSelf(r.store.Username())
		err = r.conn.Open(ctx, r.id, r.store.Credential())
		r.startRefresh()
	}); cerr != nil {
		return cerr
	}
	return err
}

// Reset is the user's way out of StateFailed. A credential that changed
// since the last Open (the user logged in again) is picked up.
func (r *Room) Reset(ctx context.Context) error {
	var err error
	if cerr := r.call(func() {
		r.logger.Info("Resetting room connection", "from", r.conn.State().String())
		r.presence.SetSelf(r.store.Username())
		if cred := r.store.Credential(); cred != r.conn.credential {
			err = r.conn.Open(ctx, r.id, cred)
			return
		}
		err = r.conn.Reset(ctx)
	}); cerr != nil {
		return cerr
	}
	return err
}

// InputChanged reports the current draft. It drives the typing signals.
func (r *Room) InputChanged(text string) error {
	return r.call(func() {
		r.draft = text
		r.typing.OnInputChange(text)
	})
}

// SendMessage sends text to the room. On success the draft is cleared if it
// still holds text and a typing stop is signalled. On a write failure the
// draft is kept and the status reports the failure.
func (r *Room) SendMessage(ctx context.Context, text string) error {
	frame, err := wire.NewChatMessage(text)
	if err != nil {
		return err
	}

	var result <-chan error
	if cerr := r.call(func() { result, err = r.conn.Send(ctx, frame) }); cerr != nil {
		return cerr
	}
	if errors.Is(err, ErrNotOpen) {
		return err
	}
	if err == nil {
		select {
		case err = <-result:
		case <-ctx.Done():
			err = ctx.Err()
		case <-r.done:
			return ErrRoomClosed
		}
	}

	if cerr := r.call(func() { r.messageSent(text, err) }); cerr != nil {
		return cerr
	}
	return err
}

// View returns a render-ready snapshot.
func (r *Room) View() (View, error) {
	var v View
	err := r.call(func() {
		v = buildView(r.tr, viewInput{
			roomID:   r.id,
			roomName: r.name,
			change:   r.lastChange,
			status:   r.status,
			draft:    r.draft,
			messages: r.buffer.Snapshot(),
			presence: r.presence,
			now:      r.clock.Now(),
		})
	})
	return v, err
}

// State returns the connection state.
func (r *Room) State() State {
	state := StateDisconnected
	_ = r.call(func() { state = r.conn.State() })
	return state
}

// OnStateChange registers fn to be called on every transition. fn runs on the
// event loop and must not call back into the Room.
func (r *Room) OnStateChange(fn func(StateChange)) error {
	return r.call(func() {
		r.observers = append(r.observers, fn)
	})
}

// Close tears the session down: timers are cancelled, the connection is
// closed and all derived state is discarded. It is idempotent.
func (r *Room) Close() error {
	r.closeOnce.Do(func() {
		_ = r.call(r.teardown)
		close(r.quit)
		<-r.done
		<-r.drained
		r.logger.Info("Room closed")
	})
	return nil
}

func (r *Room) run() {
	defer func() {
		close(r.done)
		close(r.outbox)
	}()
	for {
		select {
		case fn := <-r.ops:
			fn()
		case <-r.quit:
			return
		}
	}
}

// publishLoop delivers events off the event loop so a subscriber may call
// back into the Room.
func (r *Room) publishLoop() {
	defer close(r.drained)
	for publish := range r.outbox {
		if err := publish(); err != nil {
			r.logger.Warn("Failed to publish room event", "error", err)
		}
	}
}

func (r *Room) post(fn func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.ops <- fn:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) call(fn func()) error {
	finished := make(chan struct{})
	if !r.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrRoomClosed
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrRoomClosed
		}
	}
}

func (r *Room) teardown() {
	r.typing.Stop()
	r.stopRefresh()
	r.conn.Close()
	r.dedupe.Reset()
	r.buffer.Reset()
	r.presence.Reset()
	r.draft = ""
}

func (r *Room) handleState(change StateChange) {
	switch change.To {
	case StateConnecting:
	case StateOpen:
		r.presence.Reset()
		r.setStatus("")
	default:
		r.presence.Reset()
		r.typing.Stop()
		r.setStatus(r.statusFor(change))
	}

	change.Status = r.status
	r.lastChange = change
	for _, fn := range r.observers {
		fn(change)
	}
	publish(r, EventStateChanged, change)
}

func (r *Room) statusFor(change StateChange) string {
	if change.Err == nil {
		return ""
	}
	if errors.Is(change.Err, domain.ErrReconnectExhausted) {
		return r.tr.T(i18n.StatusReconnectExhausted)
	}
	var ce *CloseError
	if errors.As(change.Err, &ce) {
		return r.tr.T(ce.Key)
	}
	return r.tr.T(i18n.StatusConnectionClosed)
}

func (r *Room) setStatus(status string) {
	if status == r.status {
		return
	}
	r.status = status
	publish(r, EventStatusChanged, StatusChanged{Status: status})
}

func (r *Room) handleFrame(data []byte) {
	ev, err := wire.Decode(data)
	if err != nil {
		r.logger.Warn("Dropping inbound frame", "error", err)
		r.setStatus(r.tr.T(i18n.StatusProcessingError))
		return
	}

	switch e := ev.(type) {
	case wire.ErrorEvent:
		r.setStatus(e.Message)
	case wire.HistoryEvent:
		r.ingestHistory(e.ChatMessages())
	case wire.ChatMessageEvent:
		r.ingestLive(e.ChatMessage())
	case wire.ParticipantsEvent:
		if notice, ok := r.presence.OnParticipantSnapshot(e); ok {
			r.appendNotice(notice)
		}
		r.publishPresence()
	case wire.TypingEvent:
		r.presence.OnTyping(e.Username, *e.IsTyping)
		r.publishPresence()
	}
}

func (r *Room) ingestHistory(batch []domain.ChatMessage) {
	r.dedupe.Reset()
	kept := make([]domain.ChatMessage, 0, len(batch))
	for _, msg := range batch {
		if r.dedupe.Accept(msg) {
			kept = append(kept, msg)
		}
	}
	r.buffer.IngestHistory(kept)
	r.logger.Debug("History loaded", "received", len(batch), "kept", len(kept))
	publish(r, EventHistoryLoaded, HistoryLoaded{Received: len(batch), Kept: len(kept)})
}

func (r *Room) ingestLive(msg domain.ChatMessage) {
	if !r.dedupe.Accept(msg) {
		r.logger.Debug("Duplicate message dropped", "message_id", msg.ID)
		return
	}
	r.buffer.IngestLive(msg)
	wasTyping := r.presence.IsTyping(msg.SenderUsername)
	r.presence.OnMessageAccepted(msg.SenderUsername)
	publish(r, EventMessageAccepted, msg)
	if wasTyping {
		r.publishPresence()
	}
}

func (r *Room) appendNotice(n PresenceNotice) {
	key := i18n.NoticeLeft
	if n.Joined {
		key = i18n.NoticeJoined
	}
	msg := domain.ChatMessage{
		ID:             uuid.NewString(),
		Content:        r.tr.T(key, n.Username),
		SenderUsername: domain.SystemSender,
		Timestamp:      r.clock.Now().UTC(),
		System:         true,
	}
	r.dedupe.Accept(msg)
	r.buffer.IngestLive(msg)
	publish(r, EventMessageAccepted, msg)
}

func (r *Room) publishPresence() {
	publish(r, EventPresenceChanged, PresenceChanged{
		Participants: r.presence.Participants(),
		Typing:       r.presence.Typing(),
	})
}

func (r *Room) messageSent(text string, err error) {
	if err != nil {
		r.logger.Warn("Failed to send message", "error", err)
		r.setStatus(r.tr.T(i18n.StatusSendFailed))
		return
	}
	if r.draft == text {
		r.draft = ""
	}
	r.typing.OnMessageSent()
}

func (r *Room) sendTyping(isTyping bool) bool {
	frame := wire.NewTyping(r.presence.Self(), isTyping)
	if _, err := r.conn.Send(context.Background(), frame); err != nil {
		r.logger.Debug("Typing signal not sent", "is_typing", isTyping, "error", err)
		return false
	}
	return true
}

func (r *Room) startRefresh() {
	r.stopRefresh()
	if r.refreshInterval <= 0 {
		return
	}
	gen := r.refreshGen
	r.refreshTimer = r.clock.AfterFunc(r.refreshInterval, func() {
		r.post(func() { r.refresh(gen) })
	})
}

func (r *Room) refresh(gen uint64) {
	if gen != r.refreshGen {
		return
	}
	publish(r, EventRefresh, Refresh{At: r.clock.Now()})
	r.startRefresh()
}

func (r *Room) stopRefresh() {
	r.refreshGen++
	if r.refreshTimer != nil {
		r.refreshTimer.Stop()
		r.refreshTimer = nil
	}
}

// publish hands an event to the outbox. Events are notifications; the View
// stays authoritative, so a full outbox drops rather than stalls the loop.
func publish[T any](r *Room, event pubsub.Event[T], payload T) {
	fn := func() error {
		return pubsub.Publish(context.Background(), r.publisher, event, r.id, payload)
	}
	select {
	case r.outbox <- fn:
	default:
		r.logger.Warn("Room event outbox full, dropping event", "topic", event.Name())
	}
}
