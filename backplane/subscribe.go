package backplane

import (
	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/chassis"
	"github.com/lguibr/kamaelia/splitter"
)

type subscriber struct {
	name    string
	started bool
}

// SubscribeTo returns Props for a component whose outbox emits everything
// published on the named backplane after it joined. Shutting it down, or
// shutting down the backplane, deregisters it.
func SubscribeTo(name string) *axon.Props {
	return axon.NewAdaptiveProps(&subscriber{name: name}).WithName("subscribe-to-" + name)
}

func (sub *subscriber) Main(ctx axon.AdaptiveContext) axon.Status {
	if !sub.started {
		sub.started = true
		cfg, err := ctx.Scheduler().Tracker().RetrieveService(ConfigService(sub.name))
		if err != nil {
			ctx.Logger().Error().Err(err).Str("backplane", sub.name).Msg("no such backplane")
			return axon.Done
		}
		s := ctx.Scheduler()
		pt := s.Create(chassis.NewPassThrough())
		plug := s.Create(splitter.NewPlug(cfg.Component, pt))
		if err := ctx.AddChildren(plug); err != nil {
			return axon.Done
		}
		self := ctx.Self()
		for _, l := range []struct {
			src, dst axon.Endpoint
			kind     axon.PassthroughKind
		}{
			{axon.At(self, axon.ControlName), axon.At(plug, axon.ControlName), axon.Inbound},
			{axon.At(plug, axon.OutboxName), axon.At(self, axon.OutboxName), axon.Outbound},
			{axon.At(plug, axon.SignalName), axon.At(self, axon.SignalName), axon.Outbound},
		} {
			if _, err := ctx.Link(l.src, l.dst, l.kind); err != nil {
				ctx.Logger().Error().Err(err).Msg("could not wire subscriber")
				return axon.Done
			}
		}
		_ = ctx.Activate(plug)
	}
	if ctx.ChildrenDone() {
		return axon.Done
	}
	ctx.Pause()
	return axon.Continue
}
