package axon

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ThreadedBody is the behaviour of a component that needs to block, for
// example on network IO. Run executes on its own goroutine; the component
// stops once Run has returned and everything it sent has been delivered.
type ThreadedBody interface {
	Run(ctx ThreadContext)
}

// ThreadContext is the threaded side of a component's boxes.
type ThreadContext interface {
	Self() ID
	Name() string
	Logger() *zerolog.Logger

	// Done is closed when the component is stopped from the cooperative side.
	Done() <-chan struct{}
	// Ready receives a value after new messages have been handed over.
	Ready() <-chan struct{}

	// Send queues msg for outbox, blocking while the queue is full. It
	// returns ErrStopped once Done is closed.
	Send(msg Message, outbox string) error
	// TrySend is Send without blocking; a full queue gives ErrNoSpaceInBox.
	TrySend(msg Message, outbox string) error
	Recv(inbox string) (Message, bool)
	DataReady(inbox string) bool
	AnyReady() bool
}

type outgoing struct {
	msg    Message
	outbox string
}

// threadBridge moves messages between a threaded body and the component's
// real boxes. The proxy half runs as the component's step on the scheduler
// goroutine.
type threadBridge struct {
	body  ThreadedBody
	id    ID
	name  string
	log   zerolog.Logger
	sched *Scheduler
	size  int

	inboxNames []string
	outboxes   map[string]struct{}

	mu       sync.Mutex // Protects in, inCount, out, finished
	in       map[string][]Message
	inCount  int
	out      []outgoing
	finished bool

	ready       chan struct{}
	space       chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	wakePending atomic.Bool
}

func newThreadBridge(c *component, body ThreadedBody, size int) *threadBridge {
	b := &threadBridge{
		body:     body,
		id:       c.id,
		name:     c.name,
		log:      c.log,
		sched:    c.sched,
		size:     size,
		outboxes: make(map[string]struct{}, len(c.outboxes)),
		in:       make(map[string][]Message, len(c.inboxes)),
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for n := range c.inboxes {
		b.inboxNames = append(b.inboxNames, n)
	}
	sort.Strings(b.inboxNames)
	for n := range c.outboxes {
		b.outboxes[n] = struct{}{}
	}
	return b
}

func (b *threadBridge) start() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().
					Str("panic", fmt.Sprint(r)).
					Str("stack", string(debug.Stack())).
					Msg("threaded component panicked")
			}
			b.mu.Lock()
			b.finished = true
			b.mu.Unlock()
			b.requestWake()
		}()
		b.body.Run(b)
	}()
}

func (b *threadBridge) stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// requestWake asks the scheduler to step the proxy, coalescing requests
// until the wake has been processed.
func (b *threadBridge) requestWake() {
	if b.wakePending.CompareAndSwap(false, true) {
		b.sched.Post(func(s *Scheduler) {
			b.wakePending.Store(false)
			s.wake(b.id)
		})
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// proxy is the cooperative step of a threaded component.
func (b *threadBridge) proxy(ctx Context) Status {
	b.mu.Lock()
	moved := false
	for _, name := range b.inboxNames {
		for b.inCount < b.size && ctx.DataReady(name) {
			msg, _ := ctx.Recv(name)
			b.in[name] = append(b.in[name], msg)
			b.inCount++
			moved = true
		}
	}
	out := b.out
	b.out = nil
	b.mu.Unlock()
	if moved {
		notify(b.ready)
	}

	sent := 0
	for i, o := range out {
		err := ctx.Send(o.msg, o.outbox)
		if errors.Is(err, ErrNoSpaceInBox) {
			b.mu.Lock()
			b.out = append(out[i:], b.out...)
			b.mu.Unlock()
			break
		}
		if err != nil {
			b.log.Warn().Err(err).Str("outbox", o.outbox).Msg("dropping message from thread")
		}
		sent++
	}
	if sent > 0 {
		notify(b.space)
	}

	b.mu.Lock()
	finished := b.finished && len(b.out) == 0
	b.mu.Unlock()
	if finished {
		return Done
	}
	ctx.Pause()
	return Continue
}

func (b *threadBridge) Self() ID                { return b.id }
func (b *threadBridge) Name() string            { return b.name }
func (b *threadBridge) Logger() *zerolog.Logger { return &b.log }
func (b *threadBridge) Done() <-chan struct{}   { return b.done }
func (b *threadBridge) Ready() <-chan struct{}  { return b.ready }

func (b *threadBridge) Send(msg Message, outbox string) error {
	for {
		err := b.TrySend(msg, outbox)
		if !errors.Is(err, ErrNoSpaceInBox) {
			return err
		}
		select {
		case <-b.space:
		case <-b.done:
			return ErrStopped
		}
	}
}

func (b *threadBridge) TrySend(msg Message, outbox string) error {
	if _, ok := b.outboxes[outbox]; !ok {
		return lookupErr(LookupOutbox, outbox, b.id)
	}
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	b.mu.Lock()
	if len(b.out) >= b.size {
		b.mu.Unlock()
		return &NoSpaceInBoxError{Box: At(b.id, outbox), Size: b.size}
	}
	b.out = append(b.out, outgoing{msg: msg, outbox: outbox})
	b.mu.Unlock()
	b.requestWake()
	return nil
}

func (b *threadBridge) Recv(inbox string) (Message, bool) {
	b.mu.Lock()
	q, ok := b.in[inbox]
	if !ok && !b.hasInbox(inbox) {
		b.mu.Unlock()
		panic(lookupErr(LookupInbox, inbox, b.id))
	}
	if len(q) == 0 {
		b.mu.Unlock()
		return nil, false
	}
	msg := q[0]
	q[0] = nil
	b.in[inbox] = q[1:]
	b.inCount--
	b.mu.Unlock()
	b.requestWake()
	return msg, true
}

func (b *threadBridge) DataReady(inbox string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasInbox(inbox) {
		panic(lookupErr(LookupInbox, inbox, b.id))
	}
	return len(b.in[inbox]) > 0
}

func (b *threadBridge) AnyReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inCount > 0
}

func (b *threadBridge) hasInbox(name string) bool {
	i := sort.SearchStrings(b.inboxNames, name)
	return i < len(b.inboxNames) && b.inboxNames[i] == name
}
