package timer

import (
	"testing"
	"time"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/axon/axontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTimerScheduler(t *testing.T) (*axon.Scheduler, *axon.ManualClock) {
	clock := axon.NewManualClock(epoch)
	return axontest.NewScheduler(t, axon.WithClock(clock)), clock
}

func at(d time.Duration) time.Time { return epoch.Add(d * time.Second) }

func TestCoreDeliversInTimeOrder(t *testing.T) {
	s, clock := newTimerScheduler(t)
	register, request, err := Services(s)
	require.NoError(t, err)

	col := &axontest.Collector{}
	sink := s.Spawn(axontest.NewCollector(col))
	require.NoError(t, s.Deliver(register, Register{Handle: "a", Dest: axon.At(sink, axon.InboxName)}))
	for _, d := range []time.Duration{1, 5, 3, 2} {
		require.NoError(t, s.Deliver(request, Request{When: at(d), Handle: "a"}))
	}
	s.RunUntilIdle(20)
	assert.Empty(t, col.Inbox)

	clock.Advance(time.Second)
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{at(1)}, col.Inbox)

	clock.Set(at(10))
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{at(1), at(2), at(3), at(5)}, col.Inbox)
}

func TestCorePastDueFiresOnNextStep(t *testing.T) {
	s, _ := newTimerScheduler(t)
	register, request, err := Services(s)
	require.NoError(t, err)

	col := &axontest.Collector{}
	sink := s.Spawn(axontest.NewCollector(col))
	require.NoError(t, s.Deliver(register, Register{Handle: 7, Dest: axon.At(sink, axon.InboxName)}))
	require.NoError(t, s.Deliver(request, Request{When: at(-3), Handle: 7}))
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{at(-3)}, col.Inbox)
}

func TestCoreDropsDeregisteredHandles(t *testing.T) {
	s, clock := newTimerScheduler(t)
	register, request, err := Services(s)
	require.NoError(t, err)

	col := &axontest.Collector{}
	sink := s.Spawn(axontest.NewCollector(col))
	require.NoError(t, s.Deliver(register, Register{Handle: "a", Dest: axon.At(sink, axon.InboxName)}))
	require.NoError(t, s.Deliver(request, Request{When: at(1), Handle: "a"}))
	require.NoError(t, s.Deliver(request, Request{When: at(2), Handle: "unknown"}))
	s.RunUntilIdle(20)
	require.NoError(t, s.Deliver(register, Deregister{Handle: "a"}))
	s.RunUntilIdle(20)

	clock.Advance(5 * time.Second)
	s.RunUntilIdle(20)
	assert.Empty(t, col.Inbox)
	assert.Empty(t, s.Topology().Linkages)
}

func TestServicesAreShared(t *testing.T) {
	s, _ := newTimerScheduler(t)
	reg1, req1, err := Services(s)
	require.NoError(t, err)
	reg2, req2, err := Services(s)
	require.NoError(t, err)
	assert.Equal(t, reg1, reg2)
	assert.Equal(t, req1, req2)
	assert.Equal(t, 1, s.Len())

	s.Close()
	assert.Empty(t, s.Tracker().Services())
}

func TestTimerFacade(t *testing.T) {
	s, clock := newTimerScheduler(t)
	col := &axontest.Collector{}
	tm := s.Create(New())
	sink := s.Create(axontest.NewCollector(col))
	_, err := s.Link(axon.At(tm, axon.OutboxName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Activate(tm))
	require.NoError(t, s.Activate(sink))

	require.NoError(t, s.Deliver(axon.At(tm, axon.InboxName), 2*time.Second))
	require.NoError(t, s.Deliver(axon.At(tm, axon.InboxName), at(1)))
	s.RunUntilIdle(20)
	assert.Empty(t, col.Inbox)

	clock.Advance(3 * time.Second)
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{at(1), at(2)}, col.Inbox)

	require.NoError(t, s.Stop(tm))
	s.RunUntilIdle(20)
	assert.Equal(t, axon.Stopped, s.State(tm))
	top := s.Topology()
	assert.Empty(t, top.Linkages)
	for _, c := range top.Components {
		if c.Name == "timer-core" {
			assert.Equal(t, []string{axon.ControlName, axon.InboxName, RegisterName}, inboxNames(c))
			assert.Len(t, c.Outboxes, 2)
		}
	}
}

func inboxNames(c axon.ComponentInfo) []string {
	out := make([]string, 0, len(c.Inboxes))
	for _, b := range c.Inboxes {
		out = append(out, b.Name)
	}
	return out
}

func TestStandaloneCoreRegistersNoServices(t *testing.T) {
	s, clock := newTimerScheduler(t)
	core := s.Spawn(NewCore())
	col := &axontest.Collector{}
	sink := s.Spawn(axontest.NewCollector(col))

	require.NoError(t, s.Deliver(axon.At(core, RegisterName), Register{Handle: 1, Dest: axon.At(sink, axon.InboxName)}))
	require.NoError(t, s.Deliver(axon.At(core, axon.InboxName), Request{When: at(1), Handle: 1}))
	s.RunUntilIdle(20)
	clock.Advance(time.Second)
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{at(1)}, col.Inbox)
	assert.Empty(t, s.Tracker().Services())

	require.NoError(t, s.Stop(core))
	s.RunUntilIdle(20)
	assert.Equal(t, axon.Stopped, s.State(core))
}

func TestCoreForwardsShutdownUnderBackpressure(t *testing.T) {
	s, _ := newTimerScheduler(t)
	core := s.Spawn(NewCore())
	sink, col := axontest.NewBlockedCollector(t, s, axon.InboxName)
	_, err := s.Link(axon.At(core, axon.SignalName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	require.NoError(t, s.Deliver(axon.At(core, axon.ControlName), axon.ProducerFinished(0)))

	s.RunUntilIdle(20)
	assert.Equal(t, axon.Paused, s.State(core))

	require.NoError(t, s.Activate(sink))
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{axontest.Blocker, axon.ProducerFinished(0)}, col.Inbox)
	assert.Equal(t, axon.Stopped, s.State(core))
}

func TestTimerFacadeForwardsShutdownUnderBackpressure(t *testing.T) {
	s, _ := newTimerScheduler(t)
	tm := s.Spawn(New())
	sink, col := axontest.NewBlockedCollector(t, s, axon.InboxName)
	_, err := s.Link(axon.At(tm, axon.SignalName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	s.RunUntilIdle(20)

	require.NoError(t, s.Deliver(axon.At(tm, axon.ControlName), axon.ProducerFinished(0)))
	s.RunUntilIdle(20)
	assert.Equal(t, axon.Paused, s.State(tm))

	require.NoError(t, s.Activate(sink))
	s.RunUntilIdle(20)
	assert.Equal(t, []axon.Message{axontest.Blocker, axon.ProducerFinished(0)}, col.Inbox)
	assert.Equal(t, axon.Stopped, s.State(tm))
	for _, c := range s.Topology().Components {
		if c.Name == "timer-core" {
			assert.Len(t, c.Outboxes, 2)
		}
	}
}
