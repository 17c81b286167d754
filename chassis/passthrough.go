package chassis

import "github.com/lguibr/kamaelia/axon"

// PassThrough relays inbox to outbox until shut down. It is the usual child
// of composites that only need a place to receive messages.
type PassThrough struct {
	lc  axon.Lifecycle
	out axon.Backlog
}

// NewPassThrough returns Props for a PassThrough.
func NewPassThrough() *axon.Props {
	return axon.NewProps(&PassThrough{}).WithName("passthrough")
}

func (p *PassThrough) Main(ctx axon.Context) axon.Status {
	if err := p.out.Flush(ctx); err != nil {
		ctx.Logger().Warn().Err(err).Msg("passthrough dropped a message")
	}
	for p.out.Empty() && ctx.DataReady(axon.InboxName) {
		msg, _ := ctx.Recv(axon.InboxName)
		if err := p.out.Send(ctx, msg, axon.OutboxName); err != nil {
			ctx.Logger().Warn().Err(err).Msg("passthrough dropped a message")
		}
	}
	// Hold shutdowns back until everything read so far has gone out.
	if p.out.Empty() && p.lc.Poll(ctx) != axon.LifecycleRunning {
		return p.lc.Finish(ctx)
	}
	ctx.Pause()
	return axon.Continue
}
