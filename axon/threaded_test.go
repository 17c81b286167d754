package axon_test

import (
	"context"
	"testing"
	"time"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/axon/axontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threadDoubler is doubler running on its own goroutine.
type threadDoubler struct{}

func (threadDoubler) Run(ctx axon.ThreadContext) {
	for {
		for ctx.DataReady(axon.InboxName) {
			msg, _ := ctx.Recv(axon.InboxName)
			if err := ctx.Send(msg.(int)*2, axon.OutboxName); err != nil {
				return
			}
		}
		for ctx.DataReady(axon.ControlName) {
			msg, _ := ctx.Recv(axon.ControlName)
			if axon.IsShutdown(msg) {
				_ = ctx.Send(msg, axon.SignalName)
				return
			}
		}
		select {
		case <-ctx.Ready():
		case <-ctx.Done():
			return
		}
	}
}

func TestThreadedComponentExchangesMessages(t *testing.T) {
	s := axontest.NewScheduler(t)
	col := &axontest.Collector{StopOnShutdown: true}
	th := s.Create(axon.NewThreadedProps(threadDoubler{}))
	sink := s.Create(axontest.NewCollector(col))
	_, err := s.Link(axon.At(th, axon.OutboxName), axon.At(sink, axon.InboxName), axon.Normal)
	require.NoError(t, err)
	_, err = s.Link(axon.At(th, axon.SignalName), axon.At(sink, axon.ControlName), axon.Normal)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Deliver(axon.At(th, axon.InboxName), i))
	}
	require.NoError(t, s.Activate(sink))
	require.NoError(t, s.Activate(th))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	s.Post(func(s *axon.Scheduler) {
		_ = s.Deliver(axon.At(th, axon.ControlName), axon.ProducerFinished(0))
	})

	require.NoError(t, <-done)
	assert.Equal(t, []axon.Message{2, 4, 6, 8, 10}, col.Inbox)
	assert.Equal(t, []axon.Message{axon.ProducerFinished(0)}, col.Control)
}

type blockedThread struct {
	exited chan struct{}
}

func (b blockedThread) Run(ctx axon.ThreadContext) {
	defer close(b.exited)
	<-ctx.Done()
}

func TestClosingSchedulerReleasesThreads(t *testing.T) {
	s := axontest.NewScheduler(t)
	exited := make(chan struct{})
	id := s.Spawn(axon.NewThreadedProps(blockedThread{exited: exited}))
	s.RunUntilIdle(10)
	s.Close()
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("thread did not observe Done")
	}
	assert.Equal(t, axon.Stopped, s.State(id))
}
