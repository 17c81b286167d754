package axon

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// State is where a component is in its lifecycle.
type State int

const (
	Unknown State = iota
	Created
	Runnable
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Runnable:
		return "runnable"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// component is the scheduler's record of one running body.
type component struct {
	id     ID
	name   string
	sched  *Scheduler
	log    zerolog.Logger
	props  *Props
	state  State
	inRunQ bool

	inboxes  map[string]*mailbox
	outboxes map[string]struct{}
	boxSeq   int

	// step bookkeeping, reset before every Main call
	pauseRequested bool
	deadline       time.Time
	woken          bool

	parent    ID
	children  []ID
	resources map[string]any
	resInfo   map[any]ResourceInfo

	thread *threadBridge
}

func newComponent(s *Scheduler, id ID, props *Props) *component {
	c := &component{
		id:       id,
		name:     props.displayName(id),
		sched:    s,
		props:    props,
		state:    Created,
		inboxes:  make(map[string]*mailbox),
		outboxes: make(map[string]struct{}),
	}
	c.log = s.log.With().Stringer("component", id).Str("name", c.name).Logger()
	for _, n := range []string{InboxName, ControlName} {
		c.inboxes[n] = newMailbox(id, n, s.defaultInboxSize)
	}
	for _, spec := range props.inboxes {
		size := spec.size
		if size < 0 {
			size = s.defaultInboxSize
		}
		c.inboxes[spec.name] = newMailbox(id, spec.name, size)
	}
	c.outboxes[OutboxName] = struct{}{}
	c.outboxes[SignalName] = struct{}{}
	for _, n := range props.outboxes {
		c.outboxes[n] = struct{}{}
	}
	if props.threaded != nil {
		c.thread = newThreadBridge(c, props.threaded, s.threadQueueSize)
	}
	return c
}

// step runs the body once, recovering a panic into a stop.
func (c *component) step() (status Status) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("component panicked, stopping it")
			status = Done
		}
	}()
	switch {
	case c.props.adaptive != nil:
		return c.props.adaptive.Main(adaptiveCtx{c})
	case c.thread != nil:
		return c.thread.proxy(c)
	default:
		return c.props.body.Main(c)
	}
}

func (c *component) inbox(name string) *mailbox {
	mb, ok := c.inboxes[name]
	if !ok {
		panic(lookupErr(LookupInbox, name, c.id))
	}
	return mb
}

func (c *component) hasOutbox(name string) bool {
	_, ok := c.outboxes[name]
	return ok
}

func (c *component) Self() ID                { return c.id }
func (c *component) Name() string            { return c.name }
func (c *component) Scheduler() *Scheduler   { return c.sched }
func (c *component) Logger() *zerolog.Logger { return &c.log }
func (c *component) Now() time.Time          { return c.sched.clock.Now() }

func (c *component) Send(msg Message, outbox string) error {
	return c.sched.send(c, outbox, msg)
}

func (c *component) Recv(inbox string) (Message, bool) {
	mb := c.inbox(inbox)
	msg, ok := mb.pop()
	if ok && mb.size > 0 {
		c.sched.wakeFeeders(boxKey{ep: mb.endpoint(), inbox: true})
	}
	return msg, ok
}

func (c *component) DataReady(inbox string) bool {
	return c.inbox(inbox).len() > 0
}

func (c *component) AnyReady() bool {
	for _, mb := range c.inboxes {
		if mb.len() > 0 {
			return true
		}
	}
	return false
}

func (c *component) DrainInbox(inbox string) []Message {
	mb := c.inbox(inbox)
	msgs := mb.drain()
	if len(msgs) > 0 && mb.size > 0 {
		c.sched.wakeFeeders(boxKey{ep: mb.endpoint(), inbox: true})
	}
	return msgs
}

func (c *component) Pause() {
	c.pauseRequested = true
	c.deadline = time.Time{}
}

func (c *component) PauseFor(d time.Duration) {
	c.pauseRequested = true
	c.deadline = c.sched.clock.Now().Add(d)
}

func (c *component) SetInboxSize(inbox string, size int) error {
	mb, ok := c.inboxes[inbox]
	if !ok {
		return lookupErr(LookupInbox, inbox, c.id)
	}
	if size < 0 {
		size = Unbounded
	}
	mb.size = size
	return nil
}

// uniqueName returns name, or name-N for the first free N.
func (c *component) uniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for {
		c.boxSeq++
		candidate := fmt.Sprintf("%s-%d", name, c.boxSeq)
		if !taken(candidate) {
			return candidate
		}
	}
}
