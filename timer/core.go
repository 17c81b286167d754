package timer

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/lguibr/kamaelia/axon"
)

type route struct {
	outbox string
	link   axon.LinkageID
}

// Core is the shared timer service. Clients register a handle with a
// destination, then send Requests; at each request's time the core delivers
// the requested time to the handle's destination.
type Core struct {
	schedule schedule
	routes   map[Handle]route
	lc       axon.Lifecycle
	out      axon.Backlog
	tracker  *axon.Tracker
}

// NewCore returns Props for a timer core. Most code should use Services
// instead, which shares one core per scheduler.
func NewCore() *axon.Props {
	return coreProps(&Core{routes: make(map[Handle]route)})
}

func coreProps(c *Core) *axon.Props {
	return axon.NewAdaptiveProps(c).WithName("timer-core").WithInboxes(RegisterName)
}

func (c *Core) Main(ctx axon.AdaptiveContext) axon.Status {
	if c.lc.Poll(ctx) != axon.LifecycleRunning {
		return c.lc.Finish(ctx)
	}
	for ctx.DataReady(RegisterName) {
		msg, _ := ctx.Recv(RegisterName)
		switch m := msg.(type) {
		case Register:
			c.register(ctx, m)
		case Deregister:
			c.deregister(ctx, m.Handle)
		default:
			ctx.Logger().Debug().Type("message", msg).Msg("ignoring timer registration")
		}
	}
	for ctx.DataReady(axon.InboxName) {
		msg, _ := ctx.Recv(axon.InboxName)
		req, ok := msg.(Request)
		if !ok {
			ctx.Logger().Debug().Type("message", msg).Msg("ignoring timer request")
			continue
		}
		c.schedule.add(req.When, req.Handle)
	}

	if err := c.out.Flush(ctx); err != nil {
		ctx.Logger().Debug().Err(err).Msg("timer event dropped")
	}
	now := ctx.Now()
	for _, ev := range c.schedule.due(now) {
		r, ok := c.routes[ev.handle]
		if !ok {
			continue
		}
		if err := c.out.Send(ctx, ev.when, r.outbox); err != nil {
			ctx.Logger().Debug().Err(err).Msg("timer event dropped")
		}
	}

	if next, ok := c.schedule.next(); ok && c.out.Empty() {
		ctx.PauseFor(next.Sub(now))
	} else {
		ctx.Pause()
	}
	return axon.Continue
}

func (c *Core) register(ctx axon.AdaptiveContext, m Register) {
	if !hashable(m.Handle) {
		ctx.Logger().Warn().Type("handle", m.Handle).Msg("timer handle is not comparable")
		return
	}
	c.deregister(ctx, m.Handle)
	outbox := ctx.AddOutbox(axon.OutboxName)
	kind := axon.Normal
	if m.Passthrough == axon.Outbound {
		kind = axon.Outbound
	}
	id, err := ctx.Link(axon.At(ctx.Self(), outbox), m.Dest, kind)
	if err != nil {
		_ = ctx.DeleteOutbox(outbox)
		ctx.Logger().Debug().Err(err).Stringer("dest", m.Dest).Msg("timer registration failed")
		return
	}
	c.routes[m.Handle] = route{outbox: outbox, link: id}
}

func (c *Core) deregister(ctx axon.AdaptiveContext, h Handle) {
	if !hashable(h) {
		return
	}
	r, ok := c.routes[h]
	if !ok {
		return
	}
	if err := ctx.Unlink(r.link); err != nil && !errors.Is(err, axon.ErrLookup) {
		ctx.Logger().Warn().Err(err).Msg("could not unlink timer client")
	}
	_ = ctx.DeleteOutbox(r.outbox)
	delete(c.routes, h)
}

// Stopped withdraws the shared services if this core provided them.
func (c *Core) Stopped() {
	if c.tracker == nil {
		return
	}
	_ = c.tracker.DeregisterService(RegisterService)
	_ = c.tracker.DeregisterService(RequestService)
}

// Services returns the shared timer core's register and request inboxes,
// creating, registering and activating the core on first use.
func Services(s *axon.Scheduler) (register, request axon.Endpoint, err error) {
	tr := s.Tracker()
	register, errReg := tr.RetrieveService(RegisterService)
	request, errReq := tr.RetrieveService(RequestService)
	if errReg == nil && errReq == nil {
		return register, request, nil
	}
	core := &Core{routes: make(map[Handle]route), tracker: tr}
	id := s.Create(coreProps(core))
	register = axon.At(id, RegisterName)
	request = axon.At(id, axon.InboxName)
	if err := tr.RegisterService(RegisterService, register); err != nil {
		return axon.Endpoint{}, axon.Endpoint{}, fmt.Errorf("timer services: %w", err)
	}
	if err := tr.RegisterService(RequestService, request); err != nil {
		_ = tr.DeregisterService(RegisterService)
		return axon.Endpoint{}, axon.Endpoint{}, fmt.Errorf("timer services: %w", err)
	}
	if err := s.Activate(id); err != nil {
		return axon.Endpoint{}, axon.Endpoint{}, fmt.Errorf("timer services: %w", err)
	}
	return register, request, nil
}

func hashable(h Handle) bool {
	return h != nil && reflect.TypeOf(h).Comparable()
}
