package axon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultThreadQueueSize = 64
	maxPassthroughDepth    = 64
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used by the scheduler and its components.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithDefaultInboxSize bounds every inbox that does not set its own size.
func WithDefaultInboxSize(n int) Option {
	return func(s *Scheduler) { s.defaultInboxSize = n }
}

// WithThreadQueueSize sets the queue length between threaded components and
// the cooperative side.
func WithThreadQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.threadQueueSize = n
		}
	}
}

// WithIdleSleep caps how long Run sleeps when nothing is runnable and no
// timed pause is pending. Zero sleeps until work is posted.
func WithIdleSleep(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.idleSleep = d
		}
	}
}

// Scheduler runs components cooperatively on the goroutine that calls Tick or
// Run. Apart from Post, its methods must only be called from that goroutine
// or from component bodies.
type Scheduler struct {
	log              zerolog.Logger
	clock            Clock
	defaultInboxSize int
	threadQueueSize  int
	idleSleep        time.Duration

	components map[ID]*component
	nextID     ID
	runQueue   []ID
	waiting    map[ID]time.Time
	po         *postoffice
	tracker    *Tracker
	current    *component

	mu     sync.Mutex // Protects posted
	posted []func(*Scheduler)
	wakeCh chan struct{}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:             zerolog.Nop(),
		clock:           SystemClock(),
		threadQueueSize: defaultThreadQueueSize,
		components:      make(map[ID]*component),
		waiting:         make(map[ID]time.Time),
		po:              newPostoffice(),
		wakeCh:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = newTracker(s)
	return s
}

var (
	defaultMu    sync.Mutex
	defaultSched *Scheduler
)

// Default returns the process-wide scheduler, creating it on first use.
func Default() *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSched == nil {
		defaultSched = NewScheduler()
	}
	return defaultSched
}

// ResetDefault closes the process-wide scheduler; the next Default call
// creates a fresh one.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSched != nil {
		defaultSched.Close()
		defaultSched = nil
	}
}

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *zerolog.Logger { return &s.log }

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() Clock { return s.clock }

// Tracker returns the service registry shared by components of s.
func (s *Scheduler) Tracker() *Tracker { return s.tracker }

// Create registers a component without activating it. Its inboxes accept
// deliveries straight away.
func (s *Scheduler) Create(props *Props) ID {
	s.nextID++
	id := s.nextID
	c := newComponent(s, id, props)
	s.components[id] = c
	c.log.Debug().Msg("component created")
	return id
}

// Activate makes a created component runnable. Activating a running
// component does nothing.
func (s *Scheduler) Activate(id ID) error {
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	if c.state != Created {
		return nil
	}
	c.state = Runnable
	s.enqueue(c)
	c.log.Debug().Msg("component activated")
	if st, ok := c.props.bodyValue().(Starter); ok {
		if !s.guard(c, "Started", func() { st.Started(c) }) {
			s.stop(c)
			return nil
		}
	}
	if c.thread != nil {
		c.thread.start()
	}
	return nil
}

// Spawn creates and activates a component.
func (s *Scheduler) Spawn(props *Props) ID {
	id := s.Create(props)
	_ = s.Activate(id)
	return id
}

// State reports a component's lifecycle state. IDs handed out by s that are
// no longer registered report Stopped.
func (s *Scheduler) State(id ID) State {
	if c, ok := s.components[id]; ok {
		return c.state
	}
	if id > 0 && id <= s.nextID {
		return Stopped
	}
	return Unknown
}

// Len returns the number of registered components.
func (s *Scheduler) Len() int { return len(s.components) }

// Link joins two boxes with a scheduler-owned linkage.
func (s *Scheduler) Link(src, dst Endpoint, kind PassthroughKind) (LinkageID, error) {
	return s.link(src, dst, kind, 0)
}

// Unlink removes a linkage.
func (s *Scheduler) Unlink(id LinkageID) error {
	if _, ok := s.po.unlink(id); !ok {
		return lookupErr(LookupLinkage, fmt.Sprint(uint64(id)), 0)
	}
	return nil
}

// Linkage returns a registered linkage.
func (s *Scheduler) Linkage(id LinkageID) (Linkage, bool) {
	l, ok := s.po.get(id)
	if !ok {
		return Linkage{}, false
	}
	return *l, true
}

// Deliver puts msg into an inbox from outside any component, following
// inbound passthroughs like a linked send would.
func (s *Scheduler) Deliver(ep Endpoint, msg Message) error {
	c, err := s.lookup(ep.Component)
	if err != nil {
		return err
	}
	if _, ok := c.inboxes[ep.Box]; !ok {
		return lookupErr(LookupInbox, ep.Box, ep.Component)
	}
	return s.deliverAll(s.resolve(boxKey{ep: ep, inbox: true}, 0, nil), msg)
}

// SetInboxSize bounds an inbox of any component.
func (s *Scheduler) SetInboxSize(ep Endpoint, size int) error {
	c, err := s.lookup(ep.Component)
	if err != nil {
		return err
	}
	return c.SetInboxSize(ep.Box, size)
}

// Post queues fn to run on the scheduler goroutine at the start of the next
// tick. It is safe to call from any goroutine.
func (s *Scheduler) Post(fn func(*Scheduler)) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Shutdown sends a shutdown message of the given kind to the control inbox
// of every top-level component.
func (s *Scheduler) Shutdown(kind ShutdownKind) {
	msg := Shutdown{Kind: kind}
	for _, id := range s.sortedIDs() {
		c := s.components[id]
		if c.parent != 0 && s.State(c.parent) != Stopped {
			continue
		}
		if err := s.Deliver(At(id, ControlName), msg); err != nil {
			c.log.Warn().Err(err).Msg("could not deliver shutdown")
		}
	}
}

// Stop asks one component to stop immediately through its control inbox.
func (s *Scheduler) Stop(id ID) error {
	return s.Deliver(At(id, ControlName), ShutdownMicroprocess(0))
}

// Close stops every component at once without running the shutdown
// protocol. Threaded bodies see their Done channel closed.
func (s *Scheduler) Close() {
	for _, id := range s.sortedIDs() {
		if c, ok := s.components[id]; ok {
			s.stop(c)
		}
	}
	s.runQueue = nil
}

// Tick steps every runnable component once, in run-queue order. Components
// woken during the tick run on the next one. It returns how many components
// were stepped.
func (s *Scheduler) Tick() int {
	s.drainPosted()
	s.wakeExpired()
	queue := s.runQueue
	s.runQueue = nil
	stepped := 0
	for _, id := range queue {
		c, ok := s.components[id]
		if !ok {
			continue
		}
		c.inRunQ = false
		if c.state != Runnable {
			continue
		}
		s.runStep(c)
		stepped++
	}
	return stepped
}

// RunUntilIdle ticks until nothing is runnable or maxTicks is reached and
// returns the number of ticks that stepped something.
func (s *Scheduler) RunUntilIdle(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks {
		if s.Tick() == 0 {
			break
		}
		ticks++
	}
	return ticks
}

// Run ticks until no components remain or ctx is done. When nothing is
// runnable it sleeps until a timed pause expires or work is posted.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Debug().Int("components", len(s.components)).Msg("scheduler running")
	defer s.log.Debug().Msg("scheduler stopped")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Tick() > 0 {
			continue
		}
		if len(s.components) == 0 && !s.hasPosted() {
			return nil
		}
		var (
			timer  *time.Timer
			expiry <-chan time.Time
		)
		sleep := s.idleSleep
		if dl, ok := s.nextDeadline(); ok {
			d := dl.Sub(s.clock.Now())
			if d <= 0 {
				continue
			}
			if sleep == 0 || d < sleep {
				sleep = d
			}
		}
		if sleep > 0 {
			timer = time.NewTimer(sleep)
			expiry = timer.C
		}
		select {
		case <-ctx.Done():
		case <-s.wakeCh:
		case <-expiry:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Scheduler) runStep(c *component) {
	c.pauseRequested = false
	c.deadline = time.Time{}
	c.woken = false
	prev := s.current
	s.current = c
	status := c.step()
	s.current = prev

	if s.components[c.id] != c {
		return
	}
	if status == Done {
		s.stop(c)
		return
	}
	if c.pauseRequested && !c.woken {
		c.state = Paused
		if !c.deadline.IsZero() {
			s.waiting[c.id] = c.deadline
		}
		return
	}
	s.enqueue(c)
}

func (s *Scheduler) stop(c *component) {
	if c.state == Stopped {
		return
	}
	for name := range c.inboxes {
		s.wakeFeeders(boxKey{ep: At(c.id, name), inbox: true})
	}
	c.state = Stopped
	delete(s.components, c.id)
	delete(s.waiting, c.id)
	links := s.po.unlinkComponent(c.id)
	dropped := 0
	for _, mb := range c.inboxes {
		dropped += mb.len()
	}
	c.inboxes = nil
	c.outboxes = nil
	c.resources = nil
	c.resInfo = nil
	if c.thread != nil {
		c.thread.stop()
	}
	if st, ok := c.props.bodyValue().(Stopper); ok {
		s.guard(c, "Stopped", st.Stopped)
	}
	c.log.Debug().Int("linkages", len(links)).Int("dropped", dropped).Msg("component stopped")
	if c.parent != 0 {
		s.wake(c.parent)
	}
}

// guard runs a lifecycle hook, reporting false if it panicked.
func (s *Scheduler) guard(c *component, hook string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("hook", hook).Str("panic", fmt.Sprint(r)).Msg("component hook panicked")
			ok = false
		}
	}()
	fn()
	return true
}

func (s *Scheduler) lookup(id ID) (*component, error) {
	c, ok := s.components[id]
	if ok {
		return c, nil
	}
	if s.State(id) == Stopped {
		return nil, fmt.Errorf("%s: %w", id, ErrStopped)
	}
	return nil, lookupErr(LookupComponent, id.String(), 0)
}

func (s *Scheduler) link(src, dst Endpoint, kind PassthroughKind, owner ID) (LinkageID, error) {
	from, err := s.lookup(src.Component)
	if err != nil {
		return 0, err
	}
	to, err := s.lookup(dst.Component)
	if err != nil {
		return 0, err
	}
	if kind == Inbound {
		if _, ok := from.inboxes[src.Box]; !ok {
			return 0, lookupErr(LookupInbox, src.Box, src.Component)
		}
	} else if !from.hasOutbox(src.Box) {
		return 0, lookupErr(LookupOutbox, src.Box, src.Component)
	}
	if kind == Outbound {
		if !to.hasOutbox(dst.Box) {
			return 0, lookupErr(LookupOutbox, dst.Box, dst.Component)
		}
	} else if _, ok := to.inboxes[dst.Box]; !ok {
		return 0, lookupErr(LookupInbox, dst.Box, dst.Component)
	}
	l := s.po.link(src, dst, kind, owner)
	s.log.Trace().Stringer("linkage", l).Msg("linked")
	return l.ID, nil
}

func (s *Scheduler) send(c *component, outbox string, msg Message) error {
	if !c.hasOutbox(outbox) {
		return lookupErr(LookupOutbox, outbox, c.id)
	}
	return s.deliverAll(s.resolve(boxKey{ep: At(c.id, outbox), inbox: false}, 0, nil), msg)
}

// resolve follows linkages from key to the inboxes that finally store a
// message sent or delivered there. An inbox with inbound passthroughs
// forwards instead of storing.
func (s *Scheduler) resolve(key boxKey, depth int, out []*mailbox) []*mailbox {
	if depth > maxPassthroughDepth {
		s.log.Warn().Stringer("box", key.ep).Msg("passthrough chain too deep, dropping")
		return out
	}
	links := s.po.outgoing(key)
	if key.inbox && len(links) == 0 {
		c, ok := s.components[key.ep.Component]
		if !ok {
			return out
		}
		if mb, ok := c.inboxes[key.ep.Box]; ok {
			out = append(out, mb)
		}
		return out
	}
	for _, l := range links {
		out = s.resolve(l.sinkKey(), depth+1, out)
	}
	return out
}

// deliverAll stores msg in every sink or, if any lacks room, in none.
func (s *Scheduler) deliverAll(sinks []*mailbox, msg Message) error {
	if len(sinks) == 0 {
		return nil
	}
	need := make(map[*mailbox]int, len(sinks))
	for _, mb := range sinks {
		need[mb]++
	}
	for _, mb := range sinks {
		if r := mb.room(); r >= 0 && r < need[mb] {
			return &NoSpaceInBoxError{Box: mb.endpoint(), Size: mb.size}
		}
	}
	for _, mb := range sinks {
		mb.push(msg)
		s.wake(mb.owner)
	}
	return nil
}

func (s *Scheduler) enqueue(c *component) {
	if c.inRunQ {
		return
	}
	c.inRunQ = true
	s.runQueue = append(s.runQueue, c.id)
}

// wake makes a paused component runnable. Waking the component that is
// currently stepping keeps it from pausing at the end of the step.
func (s *Scheduler) wake(id ID) {
	c, ok := s.components[id]
	if !ok {
		return
	}
	switch c.state {
	case Paused:
		c.state = Runnable
		delete(s.waiting, id)
		s.enqueue(c)
	case Runnable:
		if s.current == c {
			c.woken = true
		}
	}
}

// wakeFeeders wakes every component whose outbox leads into key, so that
// senders held back by a full inbox retry.
func (s *Scheduler) wakeFeeders(key boxKey) {
	seen := make(map[boxKey]bool)
	var walk func(k boxKey, depth int)
	walk = func(k boxKey, depth int) {
		if depth > maxPassthroughDepth || seen[k] {
			return
		}
		seen[k] = true
		for _, l := range s.po.incoming(k) {
			src := l.sourceKey()
			if !src.inbox {
				s.wake(src.ep.Component)
			}
			walk(src, depth+1)
		}
	}
	walk(key, 0)
}

func (s *Scheduler) wakeExpired() {
	if len(s.waiting) == 0 {
		return
	}
	now := s.clock.Now()
	var due []ID
	for id, dl := range s.waiting {
		if !now.Before(dl) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	for _, id := range due {
		s.wake(id)
	}
}

func (s *Scheduler) nextDeadline() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	for _, dl := range s.waiting {
		if !ok || dl.Before(next) {
			next, ok = dl, true
		}
	}
	return next, ok
}

func (s *Scheduler) drainPosted() {
	s.mu.Lock()
	fns := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (s *Scheduler) hasPosted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posted) > 0
}

func (s *Scheduler) sortedIDs() []ID {
	ids := make([]ID, 0, len(s.components))
	for id := range s.components {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
