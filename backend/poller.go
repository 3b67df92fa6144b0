package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const (
	// ManualUpdateEvent requests an immediate update check.
	ManualUpdateEvent = "trigger-manual-update"

	DefaultPollInterval = 10 * time.Minute
)

// Checker checks the remote manifest and installs a newer extension bundle.
// It must be safe to call concurrently.
type Checker interface {
	CheckAndApply(ctx context.Context, manifestURL string) (bool, error)
}

// Subscriber delivers named events to handlers until unsubscribed
type Subscriber interface {
	On(name string, handler func()) (unsubscribe func())
}

// Poller decides when update checks run: once at start, then on every tick
// of a fixed-period timer and on every manual trigger event. Checks are not
// serialized and a failed check never stops the schedule.
type Poller struct {
	checker  Checker
	events   Subscriber
	clock    clockwork.Clock
	interval time.Duration

	mu          sync.Mutex
	onResult    func(CheckResult)
	running     bool
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
}

type PollerOption func(*Poller)

// WithClock replaces the wall clock, mostly for tests
func WithClock(clock clockwork.Clock) PollerOption {
	return func(p *Poller) {
		p.clock = clock
	}
}

// WithInterval sets the period between timer-driven checks
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func NewPoller(checker Checker, events Subscriber, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:  checker,
		events:   events,
		clock:    clockwork.NewRealClock(),
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnResult registers the callback receiving the outcome of every check
// started from now on
func (p *Poller) OnResult(fn func(CheckResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResult = fn
}

// Interval returns the timer period
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Running reports whether the timer and subscription are armed
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start arms the timer and the manual trigger subscription, then runs the
// startup check synchronously and returns its error. Triggers received while
// the startup check runs each get their own check.
func (p *Poller) Start(ctx context.Context, manifestURL string) error {
	if err := p.Arm(ctx, manifestURL); err != nil {
		return err
	}
	return p.CheckNow(ctx, manifestURL)
}

// Arm starts the timer and subscribes to manual triggers without checking.
// The first timer check happens one period after Arm returns.
func (p *Poller) Arm(ctx context.Context, manifestURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrPollerRunning
	}

	// Checks outlive the caller: once started they are never cancelled.
	checkCtx := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	p.running = true
	p.stop, p.done = stop, done

	ticker := p.clock.NewTicker(p.interval)
	go p.loop(checkCtx, manifestURL, ticker, stop, done)

	p.unsubscribe = p.events.On(ManualUpdateEvent, func() {
		select {
		case <-stop:
			return
		default:
		}
		log.Info("received manual update trigger")
		go p.check(checkCtx, manifestURL, TriggerManual)
	})

	log.Infof("update poller armed, checking every %s", p.interval)
	return nil
}

// CheckNow runs the startup check in the calling goroutine
func (p *Poller) CheckNow(ctx context.Context, manifestURL string) error {
	return p.check(context.WithoutCancel(ctx), manifestURL, TriggerStartup)
}

// Stop cancels the timer and the manual trigger subscription. It is
// idempotent. Checks already in flight run to completion.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.stop = nil
	done, unsubscribe := p.done, p.unsubscribe
	p.done, p.unsubscribe = nil, nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if done != nil {
		<-done
	}
	log.Debug("update poller stopped")
}

func (p *Poller) loop(ctx context.Context, manifestURL string, ticker clockwork.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			go p.check(ctx, manifestURL, TriggerTimer)
		}
	}
}

// check runs a single update check. Errors and panics stop here: they are
// logged and reported, never propagated to the timer or the event handler.
func (p *Poller) check(ctx context.Context, manifestURL string, trigger Trigger) (err error) {
	result := CheckResult{Trigger: trigger, At: p.clock.Now()}

	// The callback is taken when the check starts so a late result goes to
	// whoever asked for it.
	p.mu.Lock()
	report := p.onResult
	p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update check panicked: %v", r)
		}
		if err != nil {
			result.Error = err.Error()
			logger := log.WithField("trigger", trigger)
			if trigger == TriggerStartup {
				logger.Errorf("update check failed: %v", err)
			} else {
				logger.Warn(&Failure{Kind: BackgroundCheckFailure, Op: "update check", Err: err})
			}
		} else if result.Updated {
			log.WithField("trigger", trigger).Info("extension updated")
		}

		if report != nil {
			report(result)
		}
	}()

	result.Updated, err = p.checker.CheckAndApply(ctx, manifestURL)
	return err
}
