package timer

import (
	"time"

	"github.com/lguibr/kamaelia/axon"
)

// Timer is a per-client façade over the shared core. A time.Time on its
// inbox is scheduled as is; a time.Duration is scheduled relative to now.
// Each event leaves on outbox as the time.Time it was requested for.
type Timer struct {
	lc       axon.Lifecycle
	out      axon.Backlog
	register string
	request  string
	ready    bool
	leaving  bool
}

// New returns Props for a Timer.
func New() *axon.Props {
	return axon.NewAdaptiveProps(&Timer{}).WithName("timer")
}

func (t *Timer) Main(ctx axon.AdaptiveContext) axon.Status {
	if !t.ready {
		if err := t.connect(ctx); err != nil {
			ctx.Logger().Error().Err(err).Msg("timer unavailable")
			return axon.Done
		}
		t.ready = true
	}
	if err := t.out.Flush(ctx); err != nil {
		ctx.Logger().Debug().Err(err).Msg("timer request dropped")
	}
	if t.lc.Poll(ctx) != axon.LifecycleRunning {
		if !t.leaving {
			t.leaving = true
			if err := t.out.Send(ctx, Deregister{Handle: ctx.Self()}, t.register); err != nil {
				ctx.Logger().Debug().Err(err).Msg("timer deregistration dropped")
			}
		}
		if !t.out.Empty() {
			ctx.Pause()
			return axon.Continue
		}
		return t.lc.Finish(ctx)
	}
	for ctx.DataReady(axon.InboxName) {
		msg, _ := ctx.Recv(axon.InboxName)
		var when time.Time
		switch m := msg.(type) {
		case time.Time:
			when = m
		case time.Duration:
			when = ctx.Now().Add(m)
		default:
			ctx.Logger().Debug().Type("message", msg).Msg("ignoring timer input")
			continue
		}
		if err := t.out.Send(ctx, Request{When: when, Handle: ctx.Self()}, t.request); err != nil {
			ctx.Logger().Debug().Err(err).Msg("timer request dropped")
		}
	}
	ctx.Pause()
	return axon.Continue
}

func (t *Timer) connect(ctx axon.AdaptiveContext) error {
	register, request, err := Services(ctx.Scheduler())
	if err != nil {
		return err
	}
	t.register = ctx.AddOutbox("_register")
	t.request = ctx.AddOutbox("_request")
	if _, err := ctx.Link(axon.At(ctx.Self(), t.register), register, axon.Normal); err != nil {
		return err
	}
	if _, err := ctx.Link(axon.At(ctx.Self(), t.request), request, axon.Normal); err != nil {
		return err
	}
	return ctx.Send(Register{
		Handle:      ctx.Self(),
		Dest:        axon.At(ctx.Self(), axon.OutboxName),
		Passthrough: axon.Outbound,
	}, t.register)
}
