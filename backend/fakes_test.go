package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type fakeBus struct {
	mu       sync.Mutex
	next     int
	handlers map[string]map[int]func()
	emitted  []string
	states   []WizardState
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]map[int]func())}
}

func (b *fakeBus) On(name string, handler func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[int]func())
	}
	id := b.next
	b.next++
	b.handlers[name][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[name], id)
	}
}

func (b *fakeBus) Emit(name string, data ...any) {
	b.mu.Lock()
	b.emitted = append(b.emitted, name)
	if name == StateEvent && len(data) == 1 {
		if state, ok := data[0].(WizardState); ok {
			b.states = append(b.states, state)
		}
	}
	var handlers []func()
	for _, h := range b.handlers[name] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

func (b *fakeBus) subscribers(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}

func (b *fakeBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.emitted {
		if e == name {
			n++
		}
	}
	return n
}

func (b *fakeBus) lastState() (WizardState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.states) == 0 {
		return WizardState{}, false
	}
	return b.states[len(b.states)-1], true
}

type fakeChecker struct {
	calls atomic.Int32

	mu   sync.Mutex
	err  error
	urls []string
}

func (c *fakeChecker) CheckAndApply(ctx context.Context, manifestURL string) (bool, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = append(c.urls, manifestURL)
	return c.err == nil, c.err
}

func (c *fakeChecker) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeChecker) count() int {
	return int(c.calls.Load())
}

// gatedChecker holds the numbered calls in hold until release. Held calls
// return err, the others succeed without an update.
type gatedChecker struct {
	calls atomic.Int32
	hold  map[int]bool
	gate  chan struct{}
	err   error
}

func newGatedChecker(err error, hold ...int) *gatedChecker {
	c := &gatedChecker{hold: make(map[int]bool), gate: make(chan struct{}), err: err}
	for _, n := range hold {
		c.hold[n] = true
	}
	return c
}

func (c *gatedChecker) CheckAndApply(ctx context.Context, manifestURL string) (bool, error) {
	n := int(c.calls.Add(1))
	if c.hold[n] {
		<-c.gate
		return false, c.err
	}
	return false, nil
}

func (c *gatedChecker) release() {
	close(c.gate)
}

func (c *gatedChecker) count() int {
	return int(c.calls.Load())
}

type panickingChecker struct {
	calls atomic.Int32
}

func (c *panickingChecker) CheckAndApply(ctx context.Context, manifestURL string) (bool, error) {
	c.calls.Add(1)
	panic("boom")
}

type fakeHost struct {
	mu         sync.Mutex
	path       string
	pathErr    error
	resolves   int
	holdFirst  chan struct{}
	clipboard  []string
	copyErr    error
	openErr    error
	opened     int
	terminated bool
}

func (h *fakeHost) ResolvePath(ctx context.Context) (string, error) {
	h.mu.Lock()
	h.resolves++
	n, hold := h.resolves, h.holdFirst
	path, err := h.path, h.pathErr
	h.mu.Unlock()

	if n == 1 && hold != nil {
		<-hold
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (h *fakeHost) resolveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resolves
}

func (h *fakeHost) OpenExtensionsPage(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened++
	return h.openErr
}

func (h *fakeHost) CopyToClipboard(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.copyErr != nil {
		return h.copyErr
	}
	h.clipboard = append(h.clipboard, text)
	return nil
}

func (h *fakeHost) Terminate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminated = true
}

func (h *fakeHost) setPathErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pathErr = err
}

var errOffline = errors.New("dial tcp: connection refused")
