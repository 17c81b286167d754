package backplane_test

import (
	"testing"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/axon/axontest"
	"github.com/lguibr/kamaelia/backplane"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackplane(t *testing.T, s *axon.Scheduler, name string) axon.ID {
	t.Helper()
	props, err := backplane.New(s, name)
	require.NoError(t, err)
	return s.Spawn(props)
}

func subscribe(t *testing.T, s *axon.Scheduler, name string) (axon.ID, *axontest.Collector) {
	t.Helper()
	col := &axontest.Collector{}
	sub := s.Create(backplane.SubscribeTo(name))
	sink := s.Spawn(axontest.NewCollector(col))
	_, err := s.Link(axon.At(sub, axon.OutboxName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	_, err = s.Link(axon.At(sub, axon.SignalName), axon.At(sink, axon.ControlName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(sub))
	s.RunUntilIdle(20)
	return sub, col
}

func TestSubscribersOnlySeeLaterPublications(t *testing.T) {
	s := axontest.NewScheduler(t)
	newBackplane(t, s, "chat")
	pub := s.Spawn(backplane.PublishTo("chat"))
	s.RunUntilIdle(20)
	in := axon.At(pub, axon.InboxName)

	require.NoError(t, s.Deliver(in, "nobody hears this"))
	s.RunUntilIdle(20)

	_, first := subscribe(t, s, "chat")
	require.NoError(t, s.Deliver(in, "one"))
	s.RunUntilIdle(20)

	_, second := subscribe(t, s, "chat")
	require.NoError(t, s.Deliver(in, "two"))
	s.RunUntilIdle(20)

	assert.Equal(t, []axon.Message{"one", "two"}, first.Inbox)
	assert.Equal(t, []axon.Message{"two"}, second.Inbox)
}

func TestSubscriberShutdownLeavesBackplane(t *testing.T) {
	s := axontest.NewScheduler(t)
	newBackplane(t, s, "news")
	pub := s.Spawn(backplane.PublishTo("news"))
	s.RunUntilIdle(20)
	sub, col := subscribe(t, s, "news")
	stay, other := subscribe(t, s, "news")

	require.NoError(t, s.Stop(sub))
	s.RunUntilIdle(20)
	assert.Equal(t, axon.Stopped, s.State(sub))
	assert.Equal(t, []axon.Message{axon.ShutdownMicroprocess(0)}, col.Control)

	require.NoError(t, s.Deliver(axon.At(pub, axon.InboxName), "after"))
	s.RunUntilIdle(20)
	assert.Empty(t, col.Inbox)
	assert.Equal(t, []axon.Message{"after"}, other.Inbox)
	assert.Equal(t, axon.Paused, s.State(stay))
}

func TestDuplicateBackplaneName(t *testing.T) {
	s := axontest.NewScheduler(t)
	newBackplane(t, s, "dup")
	_, err := backplane.New(s, "dup")
	assert.ErrorIs(t, err, axon.ErrServiceExists)
}

func TestBackplaneShutdownStopsEveryone(t *testing.T) {
	s := axontest.NewScheduler(t)
	bp := newBackplane(t, s, "room")
	pub := s.Spawn(backplane.PublishTo("room"))
	s.RunUntilIdle(20)
	sub, col := subscribe(t, s, "room")

	require.NoError(t, s.Deliver(axon.At(bp, axon.ControlName), axon.ProducerFinished(0)))
	s.RunUntilIdle(50)

	for _, id := range []axon.ID{bp, pub, sub} {
		assert.Equal(t, axon.Stopped, s.State(id), id.String())
	}
	assert.Equal(t, []axon.Message{axon.ShutdownMicroprocess(bp)}, col.Control)
	assert.Empty(t, s.Tracker().Services())

	// The name is free again.
	newBackplane(t, s, "room")
}

func TestPublishToUnknownBackplane(t *testing.T) {
	s := axontest.NewScheduler(t)
	pub := s.Spawn(backplane.PublishTo("nowhere"))
	sub := s.Spawn(backplane.SubscribeTo("nowhere"))
	s.RunUntilIdle(10)
	assert.Equal(t, axon.Stopped, s.State(pub))
	assert.Equal(t, axon.Stopped, s.State(sub))
}

func TestPublisherForwardsShutdownUnderBackpressure(t *testing.T) {
	s := axontest.NewScheduler(t)
	newBackplane(t, s, "busy")
	pub := s.Spawn(backplane.PublishTo("busy"))
	sink, col := axontest.NewBlockedCollector(t, s, axon.InboxName)
	_, err := s.Link(axon.At(pub, axon.SignalName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	s.RunUntilIdle(20)

	require.NoError(t, s.Deliver(axon.At(pub, axon.ControlName), axon.ProducerFinished(0)))
	s.RunUntilIdle(20)
	assert.Equal(t, axon.Paused, s.State(pub))

	require.NoError(t, s.Activate(sink))
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{axontest.Blocker, axon.ProducerFinished(0)}, col.Inbox)
	assert.Equal(t, axon.Stopped, s.State(pub))
}

func TestBackplaneShutdownReachesSlowSubscriber(t *testing.T) {
	s := axontest.NewScheduler(t)
	bp := newBackplane(t, s, "lobby")
	sub := s.Create(backplane.SubscribeTo("lobby"))
	sink, col := axontest.NewBlockedCollector(t, s, axon.ControlName)
	_, err := s.Link(axon.At(sub, axon.SignalName), axon.At(sink, axon.ControlName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(sub))
	s.RunUntilIdle(20)

	require.NoError(t, s.Deliver(axon.At(bp, axon.ControlName), axon.ProducerFinished(0)))
	s.RunUntilIdle(50)
	assert.Equal(t, axon.Stopped, s.State(bp))
	assert.Equal(t, axon.Paused, s.State(sub))

	require.NoError(t, s.Activate(sink))
	s.RunUntilIdle(50)
	assert.Equal(t, []axon.Message{axontest.Blocker, axon.ShutdownMicroprocess(bp)}, col.Control)
	assert.Equal(t, axon.Stopped, s.State(sub))
}
