package splitter

import (
	"errors"
	"fmt"

	"github.com/lguibr/kamaelia/axon"
)

// sink is one destination box with the outbox and linkage feeding it.
type sink struct {
	dest   axon.Endpoint
	outbox string
	link   axon.LinkageID
	refs   int
}

// sinkSet keeps sinks in registration order.
type sinkSet struct {
	byDest map[axon.Endpoint]*sink
	order  []*sink
}

func newSinkSet() *sinkSet {
	return &sinkSet{byDest: make(map[axon.Endpoint]*sink)}
}

func (ss *sinkSet) remove(s *sink) {
	delete(ss.byDest, s.dest)
	for i, x := range ss.order {
		if x == s {
			ss.order = append(ss.order[:i], ss.order[i+1:]...)
			return
		}
	}
}

// postponed is a message some sinks had no room for.
type postponed struct {
	msg      axon.Message
	outboxes []string
}

// Splitter copies everything arriving on its inbox to its outbox and to every
// registered sink, and everything arriving on control to signal and to every
// registered control sink. Sinks come and go through AddSink and RemoveSink
// on the configuration inbox, which is always processed before new input.
//
// A message that meets a full sink is held back for that sink only and
// retried before anything else is read.
type Splitter struct {
	source      axon.ID
	inboxName   string
	controlName string

	outboxSinks *sinkSet
	signalSinks *sinkSet

	started   bool
	stopping  bool
	postponed *postponed
}

// New returns Props for a splitter fed through its own inbox and control. It
// stops after relaying a shutdown received on control.
func New() *axon.Props {
	return axon.NewAdaptiveProps(newSplitter(0)).
		WithName("splitter").
		WithInboxes(ConfigurationName)
}

// NewWithSource returns Props for a splitter that adopts source and splits
// its output. The splitter's inbox and control pass through to source, and
// the splitter stops once source has.
func NewWithSource(source axon.ID) *axon.Props {
	return axon.NewAdaptiveProps(newSplitter(source)).
		WithName("plug-splitter").
		WithInboxes(ConfigurationName, "_inbox", "_control")
}

func newSplitter(source axon.ID) *Splitter {
	sp := &Splitter{
		source:      source,
		inboxName:   axon.InboxName,
		controlName: axon.ControlName,
		outboxSinks: newSinkSet(),
		signalSinks: newSinkSet(),
	}
	if source != 0 {
		sp.inboxName = "_inbox"
		sp.controlName = "_control"
	}
	return sp
}

func (sp *Splitter) Main(ctx axon.AdaptiveContext) axon.Status {
	if !sp.started {
		sp.started = true
		if sp.source != 0 {
			if err := sp.adopt(ctx); err != nil {
				ctx.Logger().Error().Err(err).Msg("could not adopt splitter source")
				return axon.Done
			}
		}
	}

	sp.configure(ctx)
	sp.retry(ctx)

	for !sp.stopping && sp.postponed == nil && ctx.DataReady(sp.inboxName) {
		msg, _ := ctx.Recv(sp.inboxName)
		sp.relay(ctx, msg, axon.OutboxName, sp.outboxSinks)
	}
	for !sp.stopping && sp.postponed == nil && ctx.DataReady(sp.controlName) {
		msg, _ := ctx.Recv(sp.controlName)
		sp.relay(ctx, msg, axon.SignalName, sp.signalSinks)
		if sp.source == 0 && axon.IsShutdown(msg) {
			sp.stopping = true
		}
	}
	if sp.finished(ctx) {
		sp.teardown(ctx)
		return axon.Done
	}
	ctx.Pause()
	return axon.Continue
}

// finished reports whether every copy owed to a sink has been delivered and
// the splitter has nothing left to relay.
func (sp *Splitter) finished(ctx axon.AdaptiveContext) bool {
	if sp.postponed != nil {
		return false
	}
	if sp.source == 0 {
		return sp.stopping
	}
	return ctx.ChildrenDone() && !ctx.DataReady(sp.inboxName) && !ctx.DataReady(sp.controlName)
}

func (sp *Splitter) adopt(ctx axon.AdaptiveContext) error {
	self := ctx.Self()
	if err := ctx.AddChildren(sp.source); err != nil {
		return err
	}
	links := []struct {
		src, dst axon.Endpoint
		kind     axon.PassthroughKind
	}{
		{axon.At(self, axon.InboxName), axon.At(sp.source, axon.InboxName), axon.Inbound},
		{axon.At(self, axon.ControlName), axon.At(sp.source, axon.ControlName), axon.Inbound},
		{axon.At(sp.source, axon.OutboxName), axon.At(self, sp.inboxName), axon.Normal},
		{axon.At(sp.source, axon.SignalName), axon.At(self, sp.controlName), axon.Normal},
	}
	for _, l := range links {
		if _, err := ctx.Link(l.src, l.dst, l.kind); err != nil {
			return fmt.Errorf("link %s to %s: %w", l.src, l.dst, err)
		}
	}
	return ctx.Activate(sp.source)
}

func (sp *Splitter) configure(ctx axon.AdaptiveContext) {
	for ctx.DataReady(ConfigurationName) {
		msg, _ := ctx.Recv(ConfigurationName)
		switch cfg := msg.(type) {
		case AddSink:
			if cfg.Inbox != "" {
				sp.addSink(ctx, sp.outboxSinks, axon.At(cfg.Sink, cfg.Inbox), axon.OutboxName)
			}
			if cfg.Control != "" {
				sp.addSink(ctx, sp.signalSinks, axon.At(cfg.Sink, cfg.Control), axon.SignalName)
			}
		case RemoveSink:
			if cfg.Inbox != "" {
				sp.removeSink(ctx, sp.outboxSinks, axon.At(cfg.Sink, cfg.Inbox))
			}
			if cfg.Control != "" {
				sp.removeSink(ctx, sp.signalSinks, axon.At(cfg.Sink, cfg.Control))
			}
		default:
			ctx.Logger().Debug().Type("message", msg).Msg("ignoring splitter configuration")
		}
	}
}

func (sp *Splitter) addSink(ctx axon.AdaptiveContext, set *sinkSet, dest axon.Endpoint, prefix string) {
	if s, ok := set.byDest[dest]; ok {
		s.refs++
		return
	}
	outbox := ctx.AddOutbox(prefix)
	id, err := ctx.Link(axon.At(ctx.Self(), outbox), dest, axon.Normal)
	if err != nil {
		_ = ctx.DeleteOutbox(outbox)
		ctx.Logger().Debug().Err(err).Stringer("sink", dest).Msg("not adding sink")
		return
	}
	s := &sink{dest: dest, outbox: outbox, link: id, refs: 1}
	set.byDest[dest] = s
	set.order = append(set.order, s)
	ctx.Logger().Debug().Stringer("sink", dest).Str("outbox", outbox).Msg("sink added")
}

func (sp *Splitter) removeSink(ctx axon.AdaptiveContext, set *sinkSet, dest axon.Endpoint) {
	s, ok := set.byDest[dest]
	if !ok {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	sp.unplug(ctx, set, s)
	ctx.Logger().Debug().Stringer("sink", dest).Msg("sink removed")
}

func (sp *Splitter) unplug(ctx axon.AdaptiveContext, set *sinkSet, s *sink) {
	// The linkage is already gone when the sink stopped first.
	if err := ctx.Unlink(s.link); err != nil && !errors.Is(err, axon.ErrLookup) {
		ctx.Logger().Warn().Err(err).Msg("could not unlink sink")
	}
	_ = ctx.DeleteOutbox(s.outbox)
	set.remove(s)
	if sp.postponed != nil {
		sp.postponed.outboxes = dropString(sp.postponed.outboxes, s.outbox)
		if len(sp.postponed.outboxes) == 0 {
			sp.postponed = nil
		}
	}
}

// relay sends msg on own and on every sink of set, postponing the sinks that
// have no room.
func (sp *Splitter) relay(ctx axon.AdaptiveContext, msg axon.Message, own string, set *sinkSet) {
	outboxes := make([]string, 0, len(set.order)+1)
	outboxes = append(outboxes, own)
	for _, s := range set.order {
		outboxes = append(outboxes, s.outbox)
	}
	if pending := sp.sendAll(ctx, msg, outboxes); len(pending) > 0 {
		sp.postponed = &postponed{msg: msg, outboxes: pending}
	}
}

func (sp *Splitter) retry(ctx axon.AdaptiveContext) {
	if sp.postponed == nil {
		return
	}
	pending := sp.sendAll(ctx, sp.postponed.msg, sp.postponed.outboxes)
	if len(pending) == 0 {
		sp.postponed = nil
		return
	}
	sp.postponed.outboxes = pending
}

func (sp *Splitter) sendAll(ctx axon.AdaptiveContext, msg axon.Message, outboxes []string) []string {
	var pending []string
	for _, box := range outboxes {
		err := ctx.Send(msg, box)
		switch {
		case err == nil:
		case errors.Is(err, axon.ErrNoSpaceInBox):
			pending = append(pending, box)
		default:
			ctx.Logger().Debug().Err(err).Str("outbox", box).Msg("splitter dropped a message")
		}
	}
	return pending
}

func (sp *Splitter) teardown(ctx axon.AdaptiveContext) {
	for _, set := range []*sinkSet{sp.outboxSinks, sp.signalSinks} {
		for len(set.order) > 0 {
			sp.unplug(ctx, set, set.order[0])
		}
	}
}

func dropString(list []string, s string) []string {
	out := list[:0]
	for _, x := range list {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
