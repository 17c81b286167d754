package chassis

import (
	"fmt"
	"sort"

	"github.com/lguibr/kamaelia/axon"
)

// Self names the graphline itself in a Wire.
const Self = ""

// Wire joins (From, FromBox) to (To, ToBox). Node names refer to the
// components map given to Graphline; Self refers to the graphline.
type Wire struct {
	From, FromBox string
	To, ToBox     string
}

// graphline adopts named components, links them as described by wires and
// finishes when all of them have stopped.
type graphline struct {
	components map[string]axon.ID
	wires      []Wire

	started       bool
	controlWired  bool
	signalWired   bool
	controlOutbox string
	ctl           axon.Backlog
	out           axon.Backlog
	shutdown      *axon.Shutdown
	finishing     bool
}

// Graphline builds a composite from named components and explicit wires. A
// wire from Self reads one of the graphline's inboxes, a wire to Self writes
// one of its outboxes; such boxes are declared automatically.
//
// When nothing is wired from the graphline's control, control messages are
// copied to every child whose control is not otherwise wired. When nothing
// is wired to its signal, the graphline emits the shutdown it received, or
// ProducerFinished, once all children have stopped.
func Graphline(components map[string]axon.ID, wires ...Wire) *axon.Props {
	g := &graphline{components: components, wires: wires}
	props := axon.NewAdaptiveProps(g).WithName("graphline")
	for _, w := range wires {
		if w.From == Self && !reserved(w.FromBox) {
			props.WithInboxes(w.FromBox)
		}
		if w.To == Self && !reserved(w.ToBox) {
			props.WithOutboxes(w.ToBox)
		}
	}
	return props
}

func reserved(box string) bool {
	switch box {
	case axon.InboxName, axon.ControlName, axon.OutboxName, axon.SignalName:
		return true
	}
	return false
}

func (g *graphline) Main(ctx axon.AdaptiveContext) axon.Status {
	if !g.started {
		g.started = true
		if err := g.wire(ctx); err != nil {
			ctx.Logger().Error().Err(err).Msg("could not wire graphline")
			return axon.Done
		}
	}
	if !g.controlWired {
		g.forwardControl(ctx)
	}
	if !g.finishing && ctx.ChildrenDone() {
		g.finishing = true
		if !g.signalWired {
			msg := axon.ProducerFinished(ctx.Self())
			if g.shutdown != nil {
				msg = *g.shutdown
			}
			if err := g.out.Send(ctx, msg, axon.SignalName); err != nil {
				ctx.Logger().Warn().Err(err).Msg("could not signal completion")
			}
		}
	}
	if g.finishing {
		if err := g.out.Flush(ctx); err != nil {
			ctx.Logger().Warn().Err(err).Msg("could not signal completion")
		}
		if g.out.Empty() {
			return axon.Done
		}
	}
	ctx.Pause()
	return axon.Continue
}

func (g *graphline) forwardControl(ctx axon.AdaptiveContext) {
	if err := g.ctl.Flush(ctx); err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not forward control message")
	}
	for g.ctl.Empty() && ctx.DataReady(axon.ControlName) {
		msg, _ := ctx.Recv(axon.ControlName)
		if sd, ok := axon.AsShutdown(msg); ok && g.shutdown == nil {
			g.shutdown = &sd
		}
		if err := g.ctl.Send(ctx, msg, g.controlOutbox); err != nil {
			ctx.Logger().Warn().Err(err).Msg("could not forward control message")
		}
	}
}

func (g *graphline) endpoint(self axon.ID, node, box string) (axon.Endpoint, error) {
	if node == Self {
		return axon.At(self, box), nil
	}
	id, ok := g.components[node]
	if !ok {
		return axon.Endpoint{}, fmt.Errorf("unknown node %q", node)
	}
	return axon.At(id, box), nil
}

func (g *graphline) wire(ctx axon.AdaptiveContext) error {
	self := ctx.Self()
	names := make([]string, 0, len(g.components))
	for name := range g.components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ctx.AddChildren(g.components[name]); err != nil {
			return fmt.Errorf("adopt %q: %w", name, err)
		}
	}

	controlled := make(map[axon.ID]bool)
	for _, w := range g.wires {
		if w.From == Self && w.To == Self {
			return fmt.Errorf("wire %s to %s loops on the graphline", w.FromBox, w.ToBox)
		}
		src, err := g.endpoint(self, w.From, w.FromBox)
		if err != nil {
			return err
		}
		dst, err := g.endpoint(self, w.To, w.ToBox)
		if err != nil {
			return err
		}
		kind := axon.Normal
		switch {
		case w.From == Self:
			kind = axon.Inbound
			if w.FromBox == axon.ControlName {
				g.controlWired = true
			}
		case w.To == Self:
			kind = axon.Outbound
			if w.ToBox == axon.SignalName {
				g.signalWired = true
			}
		}
		if w.To != Self && w.ToBox == axon.ControlName {
			controlled[dst.Component] = true
		}
		if _, err := ctx.Link(src, dst, kind); err != nil {
			return fmt.Errorf("wire %s to %s: %w", src, dst, err)
		}
	}

	if !g.controlWired {
		g.controlOutbox = ctx.AddOutbox("_cs")
		for _, name := range names {
			id := g.components[name]
			if controlled[id] {
				continue
			}
			if _, err := ctx.Link(axon.At(self, g.controlOutbox), axon.At(id, axon.ControlName), axon.Normal); err != nil {
				return fmt.Errorf("control fan-out to %q: %w", name, err)
			}
		}
	}

	for _, name := range names {
		if err := ctx.Activate(g.components[name]); err != nil {
			return fmt.Errorf("activate %q: %w", name, err)
		}
	}
	return nil
}
