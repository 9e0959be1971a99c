// Package broadcast runs the fixed-cadence capture and publish loop for the
// local participant's pose.
//
// Captures happen on a ticker goroutine. Captured frames go through a small
// bounded queue to a single sender goroutine, so a slow send never delays or
// skips the next capture and sends still happen in timestamp order. When the
// queue is full the oldest pending frame is dropped: a newer pose supersedes
// it.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/posecast/internal/pose"
	"github.com/BioHazard786/posecast/internal/protocol"
)

// DefaultQueueSize is the number of captured frames allowed to wait for the
// sender.
const DefaultQueueSize = 4

// MinPeriod caps the tick rate at 1000 per second.
const MinPeriod = time.Millisecond

// CaptureFunc returns the current local pose.
type CaptureFunc func() (pose.Frame, error)

// SendFunc publishes one pose message. It should return promptly once ctx is
// cancelled.
type SendFunc func(ctx context.Context, msg protocol.PoseUpdate) error

// Stats is a snapshot of loop counters.
type Stats struct {
	Ticks           uint64
	Captured        uint64
	Sent            uint64
	CaptureFailures uint64
	SendFailures    uint64
	Dropped         uint64
}

// Option customises a Loop.
type Option func(*Loop)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the loop's logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// WithQueueSize sets the send queue capacity (minimum 1).
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n < 1 {
			n = 1
		}
		l.queueSize = n
	}
}

type run struct {
	cancel context.CancelFunc
	queue  chan protocol.PoseUpdate
	wg     sync.WaitGroup
}

// Loop is the pose broadcast loop. Start and Stop may be called from any
// goroutine.
type Loop struct {
	userID    string
	now       func() time.Time
	log       *slog.Logger
	queueSize int

	mu  sync.Mutex
	cur *run

	// last is only touched by the tick goroutine of the current run.
	last int64

	ticks           atomic.Uint64
	captured        atomic.Uint64
	sent            atomic.Uint64
	captureFailures atomic.Uint64
	sendFailures    atomic.Uint64
	dropped         atomic.Uint64
}

// New returns an idle loop that stamps outgoing messages with userID.
func New(userID string, opts ...Option) *Loop {
	l := &Loop{
		userID:    userID,
		now:       time.Now,
		log:       slog.Default(),
		queueSize: DefaultQueueSize,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start begins capturing at fps frames per second. The first capture happens
// immediately; later ones follow the ticker regardless of how long sends take.
func (l *Loop) Start(capture CaptureFunc, send SendFunc, fps float64) error {
	if !(fps > 0) {
		return fmt.Errorf("%w: %v", protocol.ErrInvalidFPS, fps)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur != nil {
		return protocol.ErrAlreadyActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel: cancel,
		queue:  make(chan protocol.PoseUpdate, l.queueSize),
	}
	period := Period(fps)

	r.wg.Add(2)
	go l.tickLoop(ctx, r, capture, period)
	go l.sendLoop(ctx, r, send)
	l.cur = r

	l.log.Debug("broadcast: started", "fps", fps, "period", period)
	return nil
}

// Period is the tick interval for fps, never shorter than MinPeriod.
func Period(fps float64) time.Duration {
	ns := float64(time.Second) / fps
	switch {
	case ns < float64(MinPeriod):
		return MinPeriod
	case ns >= math.MaxInt64:
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// Stop cancels the schedule and waits for in-flight work to finish. No
// capture or send happens after it returns. Safe to call when idle.
func (l *Loop) Stop() {
	l.mu.Lock()
	r := l.cur
	l.cur = nil
	l.mu.Unlock()

	if r == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	l.log.Debug("broadcast: stopped")
}

// Active reports whether the loop is running.
func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur != nil
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:           l.ticks.Load(),
		Captured:        l.captured.Load(),
		Sent:            l.sent.Load(),
		CaptureFailures: l.captureFailures.Load(),
		SendFailures:    l.sendFailures.Load(),
		Dropped:         l.dropped.Load(),
	}
}

func (l *Loop) tickLoop(ctx context.Context, r *run, capture CaptureFunc, period time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	l.tick(ctx, r, capture)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx, r, capture)
		}
	}
}

func (l *Loop) tick(ctx context.Context, r *run, capture CaptureFunc) {
	if ctx.Err() != nil {
		return
	}
	l.ticks.Add(1)

	frame, err := safeCapture(capture)
	if err != nil {
		l.captureFailures.Add(1)
		l.log.Warn("broadcast: capture failed", "error", err)
		return
	}
	l.captured.Add(1)

	ts := l.now().UnixMilli()
	if ts < l.last {
		ts = l.last
	}
	l.last = ts

	l.enqueue(r, protocol.PoseUpdate{SenderID: l.userID, Pose: frame, Timestamp: ts})
}

// enqueue never blocks. Only the tick goroutine writes to the queue, so after
// evicting the oldest entry there is always room.
func (l *Loop) enqueue(r *run, msg protocol.PoseUpdate) {
	select {
	case r.queue <- msg:
		return
	default:
	}

	select {
	case <-r.queue:
		l.dropped.Add(1)
	default:
	}

	select {
	case r.queue <- msg:
	default:
		l.dropped.Add(1)
	}
}

func (l *Loop) sendLoop(ctx context.Context, r *run, send SendFunc) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			if ctx.Err() != nil {
				return
			}
			if err := safeSend(ctx, send, msg); err != nil {
				l.sendFailures.Add(1)
				l.log.Warn("broadcast: send failed", "timestamp", msg.Timestamp, "error", err)
				continue
			}
			l.sent.Add(1)
		}
	}
}

func safeCapture(capture CaptureFunc) (frame pose.Frame, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("capture panicked: %v", p)
		}
	}()
	return capture()
}

func safeSend(ctx context.Context, send SendFunc, msg protocol.PoseUpdate) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send panicked: %v", p)
		}
	}()
	return send(ctx, msg)
}
