package axon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/axon/axontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queued reports how many messages wait in an inbox, via the topology snapshot.
func queued(t *testing.T, s *axon.Scheduler, id axon.ID, box string) int {
	t.Helper()
	for _, c := range s.Topology().Components {
		if c.ID != id {
			continue
		}
		for _, b := range c.Inboxes {
			if b.Name == box {
				return b.Queued
			}
		}
	}
	t.Fatalf("no inbox %s on %s", box, id)
	return 0
}

func TestSendIsFIFOPerLink(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{}
	src := s.Create(axontest.NewSource(axontest.Ints(1, 100)...))
	dst := s.Create(axontest.NewCollector(col))
	_, err := s.Link(axon.At(src, axon.OutboxName), axon.At(dst, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(dst))
	require.NoError(t, s.Activate(src))

	s.RunUntilIdle(100)

	if diff := cmp.Diff(axontest.Ints(1, 100), col.Inbox); diff != "" {
		t.Errorf("received messages mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, axon.Stopped, s.State(src))
	assert.Equal(t, axon.Paused, s.State(dst))
}

func TestSendFansOutToEveryLinkedInbox(t *testing.T) {
	s := axontest.NewScheduler(t)
	a, b := &axontest.Collector{}, &axontest.Collector{}
	src := s.Create(axontest.NewSource("x", "y"))
	ida := s.Spawn(axontest.NewCollector(a))
	idb := s.Spawn(axontest.NewCollector(b))
	for _, id := range []axon.ID{ida, idb} {
		_, err := s.Link(axon.At(src, axon.OutboxName), axon.At(id, axon.InboxName), axon.Normal)
		require.NoError(t, err)
	}
	require.NoError(t, s.Activate(src))

	s.RunUntilIdle(100)

	assert.Equal(t, []axon.Message{"x", "y"}, a.Inbox)
	assert.Equal(t, []axon.Message{"x", "y"}, b.Inbox)
}

func TestSendToFullSinkDeliversNothing(t *testing.T) {
	s := axontest.NewScheduler(t)
	roomy := s.Create(axontest.NewCollector(&axontest.Collector{}))
	full := s.Create(axontest.NewCollector(&axontest.Collector{}))
	require.NoError(t, s.SetInboxSize(axon.At(full, axon.InboxName), 1))
	require.NoError(t, s.Deliver(axon.At(full, axon.InboxName), "occupied"))

	var sendErr error
	sender := s.Create(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		sendErr = ctx.Send("x", axon.OutboxName)
		return axon.Done
	})))
	for _, id := range []axon.ID{roomy, full} {
		_, err := s.Link(axon.At(sender, axon.OutboxName), axon.At(id, axon.InboxName), axon.Normal)
		require.NoError(t, err)
	}
	require.NoError(t, s.Activate(sender))
	s.RunUntilIdle(10)

	require.ErrorIs(t, sendErr, axon.ErrNoSpaceInBox)
	var nse *axon.NoSpaceInBoxError
	require.True(t, errors.As(sendErr, &nse))
	assert.Equal(t, axon.At(full, axon.InboxName), nse.Box)
	assert.Equal(t, 0, queued(t, s, roomy, axon.InboxName))
	assert.Equal(t, 1, queued(t, s, full, axon.InboxName))
}

func TestPausedComponentWakesOnceForManyDeliveries(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{}
	id := s.Spawn(axontest.NewCollector(col))
	s.RunUntilIdle(10)
	require.Equal(t, axon.Paused, s.State(id))
	require.Equal(t, 1, col.Steps)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Deliver(axon.At(id, axon.InboxName), i))
	}
	assert.Equal(t, axon.Runnable, s.State(id))
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, 2, col.Steps)
	assert.Equal(t, []axon.Message{0, 1, 2}, col.Inbox)
	assert.Equal(t, 0, s.Tick())
}

func TestComponentWokenDuringTickRunsNextTick(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{}
	dst := s.Create(axontest.NewCollector(col))
	src := s.Create(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		_ = ctx.Send("ping", axon.OutboxName)
		return axon.Done
	})))
	_, err := s.Link(axon.At(src, axon.OutboxName), axon.At(dst, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(dst))
	require.NoError(t, s.Activate(src))

	assert.Equal(t, 2, s.Tick())
	assert.Empty(t, col.Inbox)
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, []axon.Message{"ping"}, col.Inbox)
}

func TestPanicStopsOnlyThatComponent(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{}
	good := s.Create(axontest.NewCollector(col))
	bad := s.Create(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		panic("boom")
	})))
	_, err := s.Link(axon.At(bad, axon.OutboxName), axon.At(good, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(good))
	require.NoError(t, s.Activate(bad))

	s.RunUntilIdle(10)

	assert.Equal(t, axon.Stopped, s.State(bad))
	assert.Equal(t, axon.Paused, s.State(good))
	assert.Empty(t, s.Topology().Linkages)
}

func TestUnknownBoxes(t *testing.T) {
	s := axontest.NewScheduler(t)
	var sendErr error
	sender := s.Spawn(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		sendErr = ctx.Send(1, "nowhere")
		return axon.Done
	})))
	reader := s.Spawn(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		ctx.Recv("nowhere")
		return axon.Continue
	})))
	s.RunUntilIdle(10)

	require.ErrorIs(t, sendErr, axon.ErrLookup)
	var le *axon.LookupError
	require.True(t, errors.As(sendErr, &le))
	assert.Equal(t, axon.LookupOutbox, le.Kind)
	assert.Equal(t, sender, le.Component)
	assert.Equal(t, axon.Stopped, s.State(reader))

	_, err := s.Link(axon.At(sender, axon.OutboxName), axon.At(reader, axon.InboxName), axon.Normal)
	assert.ErrorIs(t, err, axon.ErrStopped)
	assert.ErrorIs(t, s.Deliver(axon.At(99, axon.InboxName), 1), axon.ErrLookup)
	assert.Equal(t, axon.Unknown, s.State(99))
}

func TestPauseForWakesAtDeadline(t *testing.T) {
	clock := axon.NewManualClock(time.Unix(0, 0))
	s := axontest.NewScheduler(t, axon.WithClock(clock))
	steps := 0
	id := s.Spawn(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		steps++
		if steps == 2 {
			return axon.Done
		}
		ctx.PauseFor(5 * time.Second)
		return axon.Continue
	})))

	s.RunUntilIdle(10)
	assert.Equal(t, 1, steps)
	clock.Advance(4 * time.Second)
	s.RunUntilIdle(10)
	assert.Equal(t, 1, steps)
	assert.Equal(t, axon.Paused, s.State(id))
	clock.Advance(time.Second)
	s.RunUntilIdle(10)
	assert.Equal(t, 2, steps)
	assert.Equal(t, axon.Stopped, s.State(id))
}

func TestSelfSendDuringStepKeepsComponentRunnable(t *testing.T) {
	s := axontest.NewScheduler(t)
	var got []axon.Message
	var self axon.ID
	self = s.Create(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		got = append(got, ctx.DrainInbox(axon.InboxName)...)
		if len(got) == 3 {
			return axon.Done
		}
		_ = ctx.Send(len(got), axon.OutboxName)
		ctx.Pause()
		return axon.Continue
	})))
	_, err := s.Link(axon.At(self, axon.OutboxName), axon.At(self, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(self))

	s.RunUntilIdle(10)

	assert.Equal(t, []axon.Message{0, 1, 2}, got)
	assert.Equal(t, axon.Stopped, s.State(self))
}

func TestRunReturnsWhenComponentsFinish(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{StopOnShutdown: true}
	id := s.Spawn(axontest.NewCollector(col))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Post(func(s *axon.Scheduler) { _ = s.Deliver(axon.At(id, axon.InboxName), "hello") })
	s.Post(func(s *axon.Scheduler) { s.Shutdown(axon.Graceful) })

	require.NoError(t, <-done)
	assert.Equal(t, []axon.Message{"hello"}, col.Inbox)
	assert.Equal(t, []axon.Message{axon.Shutdown{Kind: axon.Graceful}}, col.Control)
}

func TestRunStopsWithContext(t *testing.T) {
	s := axontest.NewScheduler(t)
	s.Spawn(axontest.NewCollector(&axontest.Collector{}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
}

type hooked struct {
	started, stopped bool
}

func (h *hooked) Started(axon.Context) { h.started = true }
func (h *hooked) Stopped()             { h.stopped = true }

func (h *hooked) Main(ctx axon.Context) axon.Status {
	ctx.Pause()
	return axon.Continue
}

func TestLifecycleHooksAndClose(t *testing.T) {
	s := axontest.NewScheduler(t)
	h := &hooked{}
	id := s.Spawn(axon.NewProps(h))
	assert.True(t, h.started)
	s.RunUntilIdle(10)
	assert.False(t, h.stopped)

	s.Close()
	assert.True(t, h.stopped)
	assert.Equal(t, axon.Stopped, s.State(id))
	assert.Equal(t, 0, s.Len())
}

func TestDefaultScheduler(t *testing.T) {
	d := axon.Default()
	assert.Same(t, d, axon.Default())
	axon.ResetDefault()
	assert.NotSame(t, d, axon.Default())
	axon.ResetDefault()
}

func TestIdleSleepRechecksTimedPauses(t *testing.T) {
	clock := axon.NewManualClock(time.Unix(0, 0))
	s := axon.NewScheduler(axon.WithClock(clock), axon.WithIdleSleep(5*time.Millisecond))
	steps := 0
	s.Spawn(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		steps++
		if steps == 1 {
			ctx.PauseFor(time.Hour)
			return axon.Continue
		}
		return axon.Done
	})))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	clock.Advance(time.Hour)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept sleeping past the manual deadline")
	}
	assert.Equal(t, 2, steps)
}
