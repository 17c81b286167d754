package splitter

import "github.com/lguibr/kamaelia/axon"

const configOutbox = "splitter_config"

// Plug attaches a child to a splitter: the child receives everything the
// splitter relays, and the plug deregisters as soon as the child stops.
type Plug struct {
	splitter axon.ID
	child    axon.ID
	phase    int
	cfgLink  axon.LinkageID
	out      axon.Backlog
}

// NewPlug returns Props for a plug joining child to the splitter with ID
// splitterID. The plug's inbox and control pass through to child and the
// child's outbox and signal come out of the plug's.
func NewPlug(splitterID, child axon.ID) *axon.Props {
	return axon.NewAdaptiveProps(&Plug{splitter: splitterID, child: child}).
		WithName("plug").
		WithOutboxes(configOutbox)
}

func (p *Plug) Main(ctx axon.AdaptiveContext) axon.Status {
	self := ctx.Self()
	switch p.phase {
	case 0:
		if err := ctx.AddChildren(p.child); err != nil {
			ctx.Logger().Error().Err(err).Msg("plug has no child")
			return axon.Done
		}
		for _, l := range []struct {
			src, dst axon.Endpoint
			kind     axon.PassthroughKind
		}{
			{axon.At(self, axon.InboxName), axon.At(p.child, axon.InboxName), axon.Inbound},
			{axon.At(self, axon.ControlName), axon.At(p.child, axon.ControlName), axon.Inbound},
			{axon.At(p.child, axon.OutboxName), axon.At(self, axon.OutboxName), axon.Outbound},
			{axon.At(p.child, axon.SignalName), axon.At(self, axon.SignalName), axon.Outbound},
		} {
			if _, err := ctx.Link(l.src, l.dst, l.kind); err != nil {
				ctx.Logger().Error().Err(err).Msg("could not wire plug child")
				return axon.Done
			}
		}
		id, err := ctx.Link(axon.At(self, configOutbox), axon.At(p.splitter, ConfigurationName), axon.Normal)
		if err != nil {
			ctx.Logger().Warn().Err(err).Stringer("splitter", p.splitter).Msg("splitter unavailable, running unplugged")
		} else {
			p.cfgLink = id
			p.configure(ctx, AddSink{Sink: self, Inbox: axon.InboxName, Control: axon.ControlName})
		}
		_ = ctx.Activate(p.child)
		p.phase = 1
		fallthrough
	case 1:
		if err := p.out.Flush(ctx); err != nil {
			ctx.Logger().Warn().Err(err).Msg("could not configure splitter")
		}
		if !ctx.ChildrenDone() {
			ctx.Pause()
			return axon.Continue
		}
		if p.cfgLink != 0 {
			p.configure(ctx, RemoveSink{Sink: self, Inbox: axon.InboxName, Control: axon.ControlName})
		}
		p.phase = 2
		return axon.Continue
	default:
		if err := p.out.Flush(ctx); err != nil {
			ctx.Logger().Warn().Err(err).Msg("could not configure splitter")
		}
		if !p.out.Empty() {
			ctx.Pause()
			return axon.Continue
		}
		if p.cfgLink != 0 {
			_ = ctx.Unlink(p.cfgLink)
		}
		return axon.Done
	}
}

// configure sends msg to the splitter's configuration inbox.
func (p *Plug) configure(ctx axon.AdaptiveContext, msg axon.Message) {
	if err := p.out.Send(ctx, msg, configOutbox); err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not configure splitter")
	}
}
