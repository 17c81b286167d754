package axon

import (
	"errors"
	"fmt"
)

// ShutdownKind is the severity of a shutdown request.
type ShutdownKind int

const (
	// Graceful asks a component to finish pending work, then stop.
	Graceful ShutdownKind = iota + 1
	// Immediate asks a component to stop as soon as it can.
	Immediate
)

func (k ShutdownKind) String() string {
	switch k {
	case Graceful:
		return "graceful"
	case Immediate:
		return "immediate"
	default:
		return fmt.Sprintf("shutdown(%d)", int(k))
	}
}

// Shutdown is sent on control boxes and forwarded on signal boxes.
type Shutdown struct {
	Kind   ShutdownKind
	Caller ID
}

// ProducerFinished is the graceful shutdown a producer emits once it has
// sent everything.
func ProducerFinished(caller ID) Shutdown {
	return Shutdown{Kind: Graceful, Caller: caller}
}

// ShutdownMicroprocess is the immediate shutdown.
func ShutdownMicroprocess(caller ID) Shutdown {
	return Shutdown{Kind: Immediate, Caller: caller}
}

// AsShutdown reports whether msg is a shutdown request.
func AsShutdown(msg Message) (Shutdown, bool) {
	switch m := msg.(type) {
	case Shutdown:
		return m, true
	case *Shutdown:
		if m != nil {
			return *m, true
		}
	}
	return Shutdown{}, false
}

// IsShutdown reports whether msg is a shutdown request of any kind.
func IsShutdown(msg Message) bool {
	_, ok := AsShutdown(msg)
	return ok
}

// LifecycleState is a component's progress through the shutdown handshake.
type LifecycleState int

const (
	LifecycleRunning LifecycleState = iota
	LifecycleDraining
	LifecycleStopped
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleRunning:
		return "running"
	case LifecycleDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// Lifecycle implements the control/signal handshake for a body. The first
// shutdown seen is forwarded on signal exactly once; later ones only
// escalate Graceful to Immediate.
type Lifecycle struct {
	state    LifecycleState
	received Shutdown
	kind     ShutdownKind
	pending  bool
}

// Poll drains the control inbox and returns the resulting state. Control
// messages that are not shutdowns are discarded.
func (l *Lifecycle) Poll(ctx Context) LifecycleState {
	l.flush(ctx)
	for ctx.DataReady(ControlName) {
		msg, _ := ctx.Recv(ControlName)
		sd, ok := AsShutdown(msg)
		if !ok {
			ctx.Logger().Debug().Type("message", msg).Msg("ignoring control message")
			continue
		}
		l.Observe(ctx, sd)
	}
	return l.state
}

// Observe feeds one shutdown message read by the body itself.
func (l *Lifecycle) Observe(ctx Context, sd Shutdown) LifecycleState {
	switch l.state {
	case LifecycleRunning:
		l.state = LifecycleDraining
		l.received = sd
		l.kind = sd.Kind
		l.pending = true
		l.flush(ctx)
	case LifecycleDraining:
		if sd.Kind == Immediate {
			l.kind = Immediate
		}
	}
	return l.state
}

func (l *Lifecycle) flush(ctx Context) {
	if !l.pending {
		return
	}
	err := ctx.Send(l.received, SignalName)
	if errors.Is(err, ErrNoSpaceInBox) {
		return
	}
	if err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not forward shutdown")
	}
	l.pending = false
}

// State returns the current state.
func (l *Lifecycle) State() LifecycleState { return l.state }

// Draining reports whether a shutdown has been received.
func (l *Lifecycle) Draining() bool { return l.state == LifecycleDraining }

// Immediate reports whether an immediate shutdown has been received.
func (l *Lifecycle) Immediate() bool {
	return l.state != LifecycleRunning && l.kind == Immediate
}

// Received returns the first shutdown message seen.
func (l *Lifecycle) Received() (Shutdown, bool) {
	return l.received, l.state != LifecycleRunning
}

// Forwarded reports whether the signal forward has gone out.
func (l *Lifecycle) Forwarded() bool {
	return l.state != LifecycleRunning && !l.pending
}

// Finish is the status for a body that has decided to stop. It retries a
// pending forward and returns Done once nothing is owed on signal; until
// then the body pauses and the full sink wakes it when read.
func (l *Lifecycle) Finish(ctx Context) Status {
	l.flush(ctx)
	if l.pending {
		ctx.Pause()
		return Continue
	}
	return Done
}

// Stop marks the lifecycle finished; later shutdowns are ignored.
func (l *Lifecycle) Stop() { l.state = LifecycleStopped }
