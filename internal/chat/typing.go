package chat

import (
	"time"

	"golang.org/x/time/rate"
)

// TypingDebouncer turns input changes into typing start/stop signals. It is
// loop-confined: timer callbacks re-enter through post.
type TypingDebouncer struct {
	clock   Clock
	delay   time.Duration
	limiter *rate.Limiter
	// send reports whether the signal was queued.
	send func(isTyping bool) bool
	post func(func()) bool

	active bool
	timer  Timer
	// gen invalidates stop callbacks that were already posted when the
	// timer was re-armed or cancelled.
	gen uint64

	// A start refused by the limiter waits here for its reservation.
	startTimer Timer
	startRes   *rate.Reservation
	startGen   uint64
}

// NewTypingDebouncer signals stop after delay without input. minInterval
// bounds how often a start signal may be sent; a start that comes too soon
// is deferred until the interval has passed. Zero disables the bound.
func NewTypingDebouncer(clock Clock, delay, minInterval time.Duration, send func(bool) bool, post func(func()) bool) *TypingDebouncer {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &TypingDebouncer{
		clock:   clock,
		delay:   delay,
		limiter: rate.NewLimiter(limit, 1),
		send:    send,
		post:    post,
	}
}

// OnInputChange handles a change of the draft.
func (d *TypingDebouncer) OnInputChange(text string) {
	if text == "" {
		d.cancel()
		d.cancelStart()
		if d.active {
			d.active = false
			d.send(false)
		}
		return
	}

	if !d.active && d.startTimer == nil {
		d.start()
	}
	d.arm()
}

// OnMessageSent signals stop immediately.
func (d *TypingDebouncer) OnMessageSent() {
	d.cancel()
	d.cancelStart()
	d.active = false
	d.send(false)
}

// Active reports whether a start signal is outstanding.
func (d *TypingDebouncer) Active() bool {
	return d.active
}

// Stop cancels the timers without signalling. Used on teardown.
func (d *TypingDebouncer) Stop() {
	d.cancel()
	d.cancelStart()
	d.active = false
}

func (d *TypingDebouncer) start() {
	now := d.clock.Now()
	res := d.limiter.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	if wait <= 0 {
		d.active = d.send(true)
		return
	}

	d.startRes = res
	gen := d.startGen
	d.startTimer = d.clock.AfterFunc(wait, func() {
		d.post(func() { d.deferredStart(gen) })
	})
}

func (d *TypingDebouncer) deferredStart(gen uint64) {
	if gen != d.startGen {
		return
	}
	d.startTimer = nil
	d.startRes = nil
	if !d.active {
		d.active = d.send(true)
	}
}

func (d *TypingDebouncer) cancelStart() {
	d.startGen++
	if d.startTimer != nil {
		d.startTimer.Stop()
		d.startTimer = nil
	}
	if d.startRes != nil {
		d.startRes.CancelAt(d.clock.Now())
		d.startRes = nil
	}
}

func (d *TypingDebouncer) arm() {
	d.cancel()
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.post(func() { d.expire(gen) })
	})
}

func (d *TypingDebouncer) expire(gen uint64) {
	if gen != d.gen {
		return
	}
	d.timer = nil
	d.cancelStart()
	if !d.active {
		return
	}
	d.active = false
	d.send(false)
}

func (d *TypingDebouncer) cancel() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
