package backplane

import (
	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/splitter"
)

const configOutbox = "_config"

type publisher struct {
	name    string
	started bool
	leaving bool
	lc      axon.Lifecycle
	out     axon.Backlog
}

// PublishTo returns Props for a component whose inbox feeds the named
// backplane. It stops when shut down, or when the backplane does.
func PublishTo(name string) *axon.Props {
	return axon.NewAdaptiveProps(&publisher{name: name}).
		WithName("publish-to-" + name).
		WithOutboxes(configOutbox)
}

func (p *publisher) Main(ctx axon.AdaptiveContext) axon.Status {
	self := ctx.Self()
	if !p.started {
		p.started = true
		tr := ctx.Scheduler().Tracker()
		in, err := tr.RetrieveService(InboxService(p.name))
		if err != nil {
			ctx.Logger().Error().Err(err).Str("backplane", p.name).Msg("no such backplane")
			return axon.Done
		}
		cfg, err := tr.RetrieveService(ConfigService(p.name))
		if err != nil {
			ctx.Logger().Error().Err(err).Str("backplane", p.name).Msg("no such backplane")
			return axon.Done
		}
		if _, err := ctx.Link(axon.At(self, axon.InboxName), in, axon.Inbound); err != nil {
			ctx.Logger().Error().Err(err).Msg("could not join backplane")
			return axon.Done
		}
		if _, err := ctx.Link(axon.At(self, configOutbox), cfg, axon.Normal); err != nil {
			ctx.Logger().Error().Err(err).Msg("could not join backplane")
			return axon.Done
		}
		p.configure(ctx, splitter.AddSink{Sink: self, Control: axon.ControlName})
	} else if err := p.out.Flush(ctx); err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not configure backplane")
	}
	if p.lc.Poll(ctx) != axon.LifecycleRunning {
		if !p.leaving {
			p.leaving = true
			p.configure(ctx, splitter.RemoveSink{Sink: self, Control: axon.ControlName})
		}
		if !p.out.Empty() {
			ctx.Pause()
			return axon.Continue
		}
		return p.lc.Finish(ctx)
	}
	ctx.Pause()
	return axon.Continue
}

func (p *publisher) configure(ctx axon.Context, msg axon.Message) {
	if err := p.out.Send(ctx, msg, configOutbox); err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not configure backplane")
	}
}
