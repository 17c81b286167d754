package axon

import (
	"fmt"
	"reflect"
)

// Status is what a body returns from one step.
type Status int

const (
	// Continue keeps the component scheduled.
	Continue Status = iota
	// Done finishes the component.
	Done
)

// Body is the behaviour of a plain component. Main is called once per
// scheduler tick while the component is runnable and must return promptly;
// state that has to survive between steps lives in the Body value.
type Body interface {
	Main(ctx Context) Status
}

// BodyFunc adapts a function to Body.
type BodyFunc func(ctx Context) Status

func (f BodyFunc) Main(ctx Context) Status { return f(ctx) }

// AdaptiveBody is the behaviour of a component that can change its own boxes,
// links and children at runtime.
type AdaptiveBody interface {
	Main(ctx AdaptiveContext) Status
}

// AdaptiveBodyFunc adapts a function to AdaptiveBody.
type AdaptiveBodyFunc func(ctx AdaptiveContext) Status

func (f AdaptiveBodyFunc) Main(ctx AdaptiveContext) Status { return f(ctx) }

// Starter is implemented by bodies that want a hook when they are activated.
type Starter interface {
	Started(ctx Context)
}

// Stopper is implemented by bodies that want a hook after they stop, whether
// by returning Done, panicking, or the scheduler being closed. Boxes are gone
// by the time it runs.
type Stopper interface {
	Stopped()
}

type boxSpec struct {
	name string
	size int
}

// Props is a configuration object used to create components.
type Props struct {
	name     string
	body     Body
	adaptive AdaptiveBody
	threaded ThreadedBody
	inboxes  []boxSpec
	outboxes []string
}

// NewProps creates Props for a plain component.
func NewProps(body Body) *Props {
	if body == nil {
		panic("axon: body cannot be nil")
	}
	return &Props{body: body}
}

// NewAdaptiveProps creates Props for an adaptive component.
func NewAdaptiveProps(body AdaptiveBody) *Props {
	if body == nil {
		panic("axon: body cannot be nil")
	}
	return &Props{adaptive: body}
}

// NewThreadedProps creates Props for a component whose body runs on its own
// goroutine.
func NewThreadedProps(body ThreadedBody) *Props {
	if body == nil {
		panic("axon: body cannot be nil")
	}
	return &Props{threaded: body}
}

// WithName sets a human-readable name. Names need not be unique.
func (p *Props) WithName(name string) *Props {
	p.name = name
	return p
}

// WithInboxes declares extra inboxes besides inbox and control.
func (p *Props) WithInboxes(names ...string) *Props {
	for _, n := range names {
		p.inboxes = append(p.inboxes, boxSpec{name: n, size: -1})
	}
	return p
}

// WithOutboxes declares extra outboxes besides outbox and signal.
func (p *Props) WithOutboxes(names ...string) *Props {
	p.outboxes = append(p.outboxes, names...)
	return p
}

// WithInboxSize bounds an inbox, declaring it if needed. Size Unbounded
// removes the limit.
func (p *Props) WithInboxSize(name string, size int) *Props {
	for i := range p.inboxes {
		if p.inboxes[i].name == name {
			p.inboxes[i].size = size
			return p
		}
	}
	p.inboxes = append(p.inboxes, boxSpec{name: name, size: size})
	return p
}

// IsAdaptive reports whether the props describe an adaptive component.
func (p *Props) IsAdaptive() bool { return p.adaptive != nil }

func (p *Props) bodyValue() any {
	switch {
	case p.adaptive != nil:
		return p.adaptive
	case p.threaded != nil:
		return p.threaded
	default:
		return p.body
	}
}

func (p *Props) displayName(id ID) string {
	if p.name != "" {
		return p.name
	}
	t := reflect.TypeOf(p.bodyValue())
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = "component"
	}
	return fmt.Sprintf("%s-%d", name, uint64(id))
}
