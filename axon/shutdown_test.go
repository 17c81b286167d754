package axon_test

import (
	"testing"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/axon/axontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleWatcher struct {
	lc     axon.Lifecycle
	states []axon.LifecycleState
}

func (p *lifecycleWatcher) Main(ctx axon.Context) axon.Status {
	p.states = append(p.states, p.lc.Poll(ctx))
	ctx.Pause()
	return axon.Continue
}

func TestLifecycleForwardsFirstShutdownOnce(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{}
	w := &lifecycleWatcher{}
	id := s.Create(axon.NewProps(w))
	sink := s.Spawn(axontest.NewCollector(col))
	_, err := s.Link(axon.At(id, axon.SignalName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)

	require.NoError(t, s.Deliver(axon.At(id, axon.ControlName), "not a shutdown"))
	require.NoError(t, s.Deliver(axon.At(id, axon.ControlName), axon.ProducerFinished(7)))
	require.NoError(t, s.Deliver(axon.At(id, axon.ControlName), axon.ShutdownMicroprocess(8)))
	require.NoError(t, s.Activate(id))
	s.RunUntilIdle(10)

	assert.Equal(t, []axon.Message{axon.Shutdown{Kind: axon.Graceful, Caller: 7}}, col.Inbox)
	assert.True(t, w.lc.Immediate())
	assert.True(t, w.lc.Forwarded())
	got, ok := w.lc.Received()
	assert.True(t, ok)
	assert.Equal(t, axon.Graceful, got.Kind)

	require.NoError(t, s.Deliver(axon.At(id, axon.ControlName), axon.ProducerFinished(9)))
	s.RunUntilIdle(10)
	assert.Len(t, col.Inbox, 1)
	assert.Equal(t, []axon.LifecycleState{axon.LifecycleDraining, axon.LifecycleDraining}, w.states)
}

func TestLifecycleRetriesForwardWhenSignalFull(t *testing.T) {
	s := axontest.NewScheduler(t)
	w := &lifecycleWatcher{}
	id := s.Create(axon.NewProps(w))
	sink := s.Create(axontest.NewCollector(&axontest.Collector{}))
	require.NoError(t, s.SetInboxSize(axon.At(sink, axon.InboxName), 1))
	require.NoError(t, s.Deliver(axon.At(sink, axon.InboxName), "blocker"))
	_, err := s.Link(axon.At(id, axon.SignalName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Deliver(axon.At(id, axon.ControlName), axon.ProducerFinished(0)))
	require.NoError(t, s.Activate(id))
	s.RunUntilIdle(10)
	assert.False(t, w.lc.Forwarded())

	require.NoError(t, s.Activate(sink))
	s.RunUntilIdle(10)
	assert.True(t, w.lc.Forwarded())
}

func TestShutdownHelpers(t *testing.T) {
	sd, ok := axon.AsShutdown(&axon.Shutdown{Kind: axon.Immediate})
	assert.True(t, ok)
	assert.Equal(t, axon.Immediate, sd.Kind)
	assert.False(t, axon.IsShutdown("stop"))
	assert.True(t, axon.IsShutdown(axon.ProducerFinished(1)))
	assert.Equal(t, "graceful", axon.Graceful.String())
}

func TestSchedulerShutdownSkipsChildren(t *testing.T) {
	s := axontest.NewScheduler(t)
	childCol := &axontest.Collector{StopOnShutdown: true}
	child := s.Create(axontest.NewCollector(childCol))
	parent := s.Create(axon.NewAdaptiveProps(&wrapper{child: child}))
	require.NoError(t, s.Activate(parent))
	s.RunUntilIdle(10)

	s.Shutdown(axon.Immediate)
	s.RunUntilIdle(10)

	assert.Empty(t, childCol.Control)
	assert.Equal(t, axon.Paused, s.State(parent))
}

func TestLifecycleFinishWaitsForForward(t *testing.T) {
	s := axontest.NewScheduler(t)
	var lc axon.Lifecycle
	id := s.Spawn(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		if lc.Poll(ctx) != axon.LifecycleRunning {
			return lc.Finish(ctx)
		}
		ctx.Pause()
		return axon.Continue
	})))
	sink, col := axontest.NewBlockedCollector(t, s, axon.InboxName)
	_, err := s.Link(axon.At(id, axon.SignalName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Deliver(axon.At(id, axon.ControlName), axon.ProducerFinished(3)))

	s.RunUntilIdle(10)
	assert.Equal(t, axon.Paused, s.State(id))
	assert.False(t, lc.Forwarded())

	require.NoError(t, s.Activate(sink))
	s.RunUntilIdle(10)
	assert.Equal(t, []axon.Message{axontest.Blocker, axon.ProducerFinished(3)}, col.Inbox)
	assert.Equal(t, axon.Stopped, s.State(id))
}

func TestLifecycleFinishWithoutShutdownIsDone(t *testing.T) {
	var lc axon.Lifecycle
	s := axontest.NewScheduler(t)
	id := s.Spawn(axon.NewProps(axon.BodyFunc(func(ctx axon.Context) axon.Status {
		return lc.Finish(ctx)
	})))
	s.RunUntilIdle(10)
	assert.Equal(t, axon.Stopped, s.State(id))
}
