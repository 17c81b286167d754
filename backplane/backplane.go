// Package backplane provides named publish/subscribe hubs built on a
// splitter. Publishers feed a backplane by name and subscribers receive
// everything published after they joined.
package backplane

import (
	"fmt"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/splitter"
)

const splitterControl = "_splitter_control"

// InboxService is the tracker name of a backplane's publishing inbox.
func InboxService(name string) string { return "Backplane_I_" + name }

// ConfigService is the tracker name of a backplane's sink configuration inbox.
func ConfigService(name string) string { return "Backplane_O_" + name }

// Backplane owns the splitter behind a named hub. On shutdown it stops every
// attached publisher and subscriber immediately.
type Backplane struct {
	name     string
	splitter axon.ID
	tracker  *axon.Tracker

	started   bool
	lc        axon.Lifecycle
	out       axon.Backlog
	escalated bool
}

// New creates the splitter for the backplane called name, registers its
// services and returns Props for the backplane component. The services are
// usable straight away; the backplane must be activated for the splitter to
// relay anything.
func New(s *axon.Scheduler, name string) (*axon.Props, error) {
	tr := s.Tracker()
	for _, svc := range []string{InboxService(name), ConfigService(name)} {
		if _, err := tr.RetrieveService(svc); err == nil {
			return nil, fmt.Errorf("backplane %q: %w", name, axon.ErrServiceExists)
		}
	}
	sp := s.Create(splitter.New().WithName("backplane-splitter-" + name))
	if err := tr.RegisterService(InboxService(name), axon.At(sp, axon.InboxName)); err != nil {
		return nil, fmt.Errorf("backplane %q: %w", name, err)
	}
	if err := tr.RegisterService(ConfigService(name), axon.At(sp, splitter.ConfigurationName)); err != nil {
		_ = tr.DeregisterService(InboxService(name))
		return nil, fmt.Errorf("backplane %q: %w", name, err)
	}
	b := &Backplane{name: name, splitter: sp, tracker: tr}
	return axon.NewAdaptiveProps(b).
		WithName("backplane-" + name).
		WithOutboxes(splitterControl), nil
}

func (b *Backplane) Main(ctx axon.AdaptiveContext) axon.Status {
	if !b.started {
		b.started = true
		if err := ctx.AddChildren(b.splitter); err != nil {
			ctx.Logger().Error().Err(err).Msg("backplane lost its splitter")
			return axon.Done
		}
		if _, err := ctx.Link(axon.At(ctx.Self(), splitterControl), axon.At(b.splitter, axon.ControlName), axon.Normal); err != nil {
			ctx.Logger().Error().Err(err).Msg("could not wire backplane")
			return axon.Done
		}
		_ = ctx.Activate(b.splitter)
		ctx.Logger().Debug().Str("backplane", b.name).Msg("backplane started")
	}

	if err := b.out.Flush(ctx); err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not stop backplane splitter")
	}
	if b.lc.Poll(ctx) != axon.LifecycleRunning && !b.escalated {
		b.escalated = true
		if err := b.out.Send(ctx, axon.ShutdownMicroprocess(ctx.Self()), splitterControl); err != nil {
			ctx.Logger().Warn().Err(err).Msg("could not stop backplane splitter")
		}
	}
	if ctx.ChildrenDone() {
		return b.lc.Finish(ctx)
	}
	ctx.Pause()
	return axon.Continue
}

// Stopped withdraws the backplane's services.
func (b *Backplane) Stopped() {
	_ = b.tracker.DeregisterService(InboxService(b.name))
	_ = b.tracker.DeregisterService(ConfigService(b.name))
}
