package selector

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lguibr/kamaelia/axon"
)

// DefaultPollInterval is how long the selector pauses when nothing it
// watches is ready.
const DefaultPollInterval = 10 * time.Millisecond

type kind int

const (
	reading kind = iota
	writing
	exceptional
)

func (k kind) String() string {
	switch k {
	case reading:
		return "reader"
	case writing:
		return "writer"
	default:
		return "exceptional"
	}
}

type key struct {
	fd   uintptr
	kind kind
}

type watch struct {
	key
	sel    Selectable
	outbox string
	link   axon.LinkageID
	seq    uint64
}

// Selector watches file descriptors for readiness without ever blocking the
// scheduler. Each registration fires once: the Selectable is sent to its
// destination and the registration is dropped, so clients re-arm with
// another New* message after handling it.
type Selector struct {
	interval time.Duration
	watches  map[key]*watch
	seq      uint64
	lc       axon.Lifecycle
	tracker  *axon.Tracker
}

// Option configures a Selector.
type Option func(*Selector)

// WithPollInterval sets how long the selector pauses between polls when
// nothing is ready.
func WithPollInterval(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.interval = d
		}
	}
}

func newSelector(opts []Option) *Selector {
	s := &Selector{interval: DefaultPollInterval, watches: make(map[key]*watch)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New returns Props for a standalone Selector. Most code should use
// Services, which shares one selector per scheduler.
func New(opts ...Option) *axon.Props {
	return props(newSelector(opts))
}

func props(s *Selector) *axon.Props {
	return axon.NewAdaptiveProps(s).WithName("selector").WithInboxes(NotifyName)
}

func (s *Selector) Main(ctx axon.AdaptiveContext) axon.Status {
	if s.lc.Poll(ctx) != axon.LifecycleRunning {
		for k := range s.watches {
			s.remove(ctx, k)
		}
		return s.lc.Finish(ctx)
	}
	s.configure(ctx, NotifyName)
	s.configure(ctx, axon.InboxName)

	if len(s.watches) == 0 {
		ctx.Pause()
		return axon.Continue
	}
	watches := s.sorted()
	ready, err := poll(watches)
	if err != nil {
		ctx.Logger().Error().Err(err).Msg("poll failed")
		ctx.PauseFor(s.interval)
		return axon.Continue
	}
	fired := 0
	for i, w := range watches {
		if !ready[i] {
			continue
		}
		err := ctx.Send(w.sel, w.outbox)
		if errors.Is(err, axon.ErrNoSpaceInBox) {
			continue
		}
		if err != nil {
			ctx.Logger().Debug().Err(err).Stringer("kind", w.kind).Msg("dropping readiness event")
		}
		s.remove(ctx, w.key)
		fired++
	}
	if fired == 0 {
		ctx.PauseFor(s.interval)
	}
	return axon.Continue
}

func (s *Selector) configure(ctx axon.AdaptiveContext, inbox string) {
	for ctx.DataReady(inbox) {
		msg, _ := ctx.Recv(inbox)
		switch m := msg.(type) {
		case NewReader:
			s.add(ctx, reading, m.Selectable, m.Dest)
		case NewWriter:
			s.add(ctx, writing, m.Selectable, m.Dest)
		case NewExceptional:
			s.add(ctx, exceptional, m.Selectable, m.Dest)
		case RemoveReader:
			s.removeSelectable(ctx, reading, m.Selectable)
		case RemoveWriter:
			s.removeSelectable(ctx, writing, m.Selectable)
		case RemoveExceptional:
			s.removeSelectable(ctx, exceptional, m.Selectable)
		default:
			ctx.Logger().Debug().Type("message", msg).Msg("ignoring selector request")
		}
	}
}

func (s *Selector) add(ctx axon.AdaptiveContext, k kind, sel Selectable, dest axon.Endpoint) {
	if sel == nil {
		return
	}
	wk := key{fd: sel.Fd(), kind: k}
	s.remove(ctx, wk)
	outbox := ctx.AddOutbox(k.String())
	id, err := ctx.Link(axon.At(ctx.Self(), outbox), dest, axon.Normal)
	if err != nil {
		_ = ctx.DeleteOutbox(outbox)
		ctx.Logger().Debug().Err(err).Stringer("dest", dest).Msg("selector registration failed")
		return
	}
	s.seq++
	s.watches[wk] = &watch{key: wk, sel: sel, outbox: outbox, link: id, seq: s.seq}
}

func (s *Selector) removeSelectable(ctx axon.AdaptiveContext, k kind, sel Selectable) {
	if sel == nil {
		return
	}
	s.remove(ctx, key{fd: sel.Fd(), kind: k})
}

func (s *Selector) remove(ctx axon.AdaptiveContext, k key) {
	w, ok := s.watches[k]
	if !ok {
		return
	}
	delete(s.watches, k)
	if err := ctx.Unlink(w.link); err != nil && !errors.Is(err, axon.ErrLookup) {
		ctx.Logger().Warn().Err(err).Msg("could not unlink selector client")
	}
	_ = ctx.DeleteOutbox(w.outbox)
}

// sorted returns the watches in registration order.
func (s *Selector) sorted() []watch {
	out := make([]watch, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Stopped withdraws the shared services if this selector provided them.
func (s *Selector) Stopped() {
	if s.tracker == nil {
		return
	}
	_ = s.tracker.DeregisterService(Service)
	_ = s.tracker.DeregisterService(ShutdownService)
}

// Services returns the shared selector's notify and control inboxes,
// creating, registering and activating it on first use.
func Services(sched *axon.Scheduler, opts ...Option) (notify, shutdown axon.Endpoint, err error) {
	tr := sched.Tracker()
	notify, errN := tr.RetrieveService(Service)
	shutdown, errS := tr.RetrieveService(ShutdownService)
	if errN == nil && errS == nil {
		return notify, shutdown, nil
	}
	sel := newSelector(opts)
	sel.tracker = tr
	id := sched.Create(props(sel))
	notify = axon.At(id, NotifyName)
	shutdown = axon.At(id, axon.ControlName)
	if err := tr.RegisterService(Service, notify); err != nil {
		return axon.Endpoint{}, axon.Endpoint{}, fmt.Errorf("selector services: %w", err)
	}
	if err := tr.RegisterService(ShutdownService, shutdown); err != nil {
		_ = tr.DeregisterService(Service)
		return axon.Endpoint{}, axon.Endpoint{}, fmt.Errorf("selector services: %w", err)
	}
	if err := sched.Activate(id); err != nil {
		return axon.Endpoint{}, axon.Endpoint{}, fmt.Errorf("selector services: %w", err)
	}
	return notify, shutdown, nil
}
