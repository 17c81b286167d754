package chassis

import (
	"fmt"

	"github.com/lguibr/kamaelia/axon"
)

type link struct {
	src, dst axon.Endpoint
	kind     axon.PassthroughKind
}

// chain joins from's outbox and signal to to's inbox and control.
func chain(from, to axon.ID) []link {
	return []link{
		{axon.At(from, axon.OutboxName), axon.At(to, axon.InboxName), axon.Normal},
		{axon.At(from, axon.SignalName), axon.At(to, axon.ControlName), axon.Normal},
	}
}

// pipeline adopts its components, chains them and finishes when all of them
// have stopped.
type pipeline struct {
	ids      []axon.ID
	circular bool
	started  bool
}

// Pipeline wires ids in order, outbox to inbox and signal to control. The
// pipeline's own inbox and control alias the first component's; the last
// component's outbox and signal come out of the pipeline's.
func Pipeline(ids ...axon.ID) *axon.Props {
	return axon.NewAdaptiveProps(&pipeline{ids: ids}).WithName("pipeline")
}

// CircularPipeline is Pipeline with the last component feeding back into
// the first instead of out of the pipeline.
func CircularPipeline(ids ...axon.ID) *axon.Props {
	return axon.NewAdaptiveProps(&pipeline{ids: ids, circular: true}).WithName("circular-pipeline")
}

func (p *pipeline) Main(ctx axon.AdaptiveContext) axon.Status {
	if !p.started {
		p.started = true
		if err := p.wire(ctx); err != nil {
			ctx.Logger().Error().Err(err).Msg("could not wire pipeline")
			return axon.Done
		}
	}
	if ctx.ChildrenDone() {
		return axon.Done
	}
	ctx.Pause()
	return axon.Continue
}

func (p *pipeline) wire(ctx axon.AdaptiveContext) error {
	if len(p.ids) == 0 {
		return nil
	}
	if err := ctx.AddChildren(p.ids...); err != nil {
		return fmt.Errorf("adopt components: %w", err)
	}
	self := ctx.Self()
	first, last := p.ids[0], p.ids[len(p.ids)-1]
	links := []link{
		{axon.At(self, axon.InboxName), axon.At(first, axon.InboxName), axon.Inbound},
		{axon.At(self, axon.ControlName), axon.At(first, axon.ControlName), axon.Inbound},
	}
	for i := 0; i+1 < len(p.ids); i++ {
		links = append(links, chain(p.ids[i], p.ids[i+1])...)
	}
	if p.circular {
		links = append(links, chain(last, first)...)
	} else {
		links = append(links,
			link{axon.At(last, axon.OutboxName), axon.At(self, axon.OutboxName), axon.Outbound},
			link{axon.At(last, axon.SignalName), axon.At(self, axon.SignalName), axon.Outbound},
		)
	}
	for _, l := range links {
		if _, err := ctx.Link(l.src, l.dst, l.kind); err != nil {
			return fmt.Errorf("link %s to %s: %w", l.src, l.dst, err)
		}
	}
	for _, id := range p.ids {
		if err := ctx.Activate(id); err != nil {
			return fmt.Errorf("activate %s: %w", id, err)
		}
	}
	return nil
}
