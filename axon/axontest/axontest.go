// Package axontest provides components and helpers for testing code built
// on axon.
package axontest

import (
	"testing"

	"github.com/lguibr/kamaelia/axon"
	"github.com/rs/zerolog"
)

// NewScheduler returns a scheduler that logs through t.
func NewScheduler(t testing.TB, opts ...axon.Option) *axon.Scheduler {
	t.Helper()
	log := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return axon.NewScheduler(append([]axon.Option{axon.WithLogger(log)}, opts...)...)
}

// Collector records everything arriving on inbox and control. With
// StopOnShutdown it finishes after the first shutdown message on control.
type Collector struct {
	Inbox          []axon.Message
	Control        []axon.Message
	StopOnShutdown bool
	// Steps counts how many times the body ran.
	Steps int
}

// NewCollector returns Props for c.
func NewCollector(c *Collector) *axon.Props {
	return axon.NewProps(c).WithName("collector")
}

func (c *Collector) Main(ctx axon.Context) axon.Status {
	c.Steps++
	c.Inbox = append(c.Inbox, ctx.DrainInbox(axon.InboxName)...)
	for _, msg := range ctx.DrainInbox(axon.ControlName) {
		c.Control = append(c.Control, msg)
		if c.StopOnShutdown && axon.IsShutdown(msg) {
			return axon.Done
		}
	}
	ctx.Pause()
	return axon.Continue
}

// Blocker is the message NewBlockedCollector leaves in the full box.
const Blocker = "blocker"

// NewBlockedCollector creates, without activating, a collector whose box
// holds one Blocker and has room for nothing else. Activating it frees the
// box.
func NewBlockedCollector(t testing.TB, s *axon.Scheduler, box string) (axon.ID, *Collector) {
	t.Helper()
	col := &Collector{}
	id := s.Create(NewCollector(col))
	ep := axon.At(id, box)
	if err := s.SetInboxSize(ep, 1); err != nil {
		t.Fatalf("bound %s: %v", ep, err)
	}
	if err := s.Deliver(ep, Blocker); err != nil {
		t.Fatalf("fill %s: %v", ep, err)
	}
	return id, col
}

// Source sends Messages on outbox, respecting backpressure, then sends
// ProducerFinished on signal and finishes.
type Source struct {
	Messages []axon.Message
	backlog  axon.Backlog
	queued   bool
}

// NewSource returns Props for a Source sending msgs.
func NewSource(msgs ...axon.Message) *axon.Props {
	return axon.NewProps(&Source{Messages: msgs}).WithName("source")
}

func (s *Source) Main(ctx axon.Context) axon.Status {
	if !s.queued {
		s.queued = true
		for _, m := range s.Messages {
			_ = s.backlog.Send(ctx, m, axon.OutboxName)
		}
		_ = s.backlog.Send(ctx, axon.ProducerFinished(ctx.Self()), axon.SignalName)
	} else if err := s.backlog.Flush(ctx); err != nil {
		ctx.Logger().Warn().Err(err).Msg("source send failed")
	}
	if s.backlog.Empty() {
		return axon.Done
	}
	ctx.Pause()
	return axon.Continue
}

// Ints returns 1..n as messages.
func Ints(from, to int) []axon.Message {
	out := make([]axon.Message, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
