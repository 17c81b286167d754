package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/chassis"
	"github.com/lguibr/kamaelia/render"
	"github.com/lguibr/kamaelia/splitter"
	"github.com/lguibr/kamaelia/timer"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small timer and splitter topology",
	Long: `Run a metronome built from a timer and a beat counter inside a graphline,
split its output to two printers through plugs, and print the topology
before it starts ticking.`,
	RunE: runDemo,
}

var (
	demoBeats    int
	demoInterval time.Duration
)

func init() {
	demoCmd.Flags().IntVar(&demoBeats, "beats", 5, "number of beats before finishing")
	demoCmd.Flags().DurationVar(&demoInterval, "interval", 200*time.Millisecond, "time between beats")
	rootCmd.AddCommand(demoCmd)
}

const armOutbox = "arm"

// beat asks its timer for a tick every interval and emits "beat n" on each
// one, finishing with ProducerFinished after count beats.
type beat struct {
	count    int
	interval time.Duration
	n        int
	armed    bool
	lc       axon.Lifecycle
}

func (b *beat) Main(ctx axon.Context) axon.Status {
	if b.lc.Poll(ctx) != axon.LifecycleRunning {
		return b.lc.Finish(ctx)
	}
	if !b.armed {
		b.armed = true
		_ = ctx.Send(b.interval, armOutbox)
	}
	for range ctx.DrainInbox(axon.InboxName) {
		b.n++
		_ = ctx.Send(fmt.Sprintf("beat %d", b.n), axon.OutboxName)
		if b.n >= b.count {
			_ = ctx.Send(axon.ProducerFinished(ctx.Self()), axon.SignalName)
			return axon.Done
		}
		_ = ctx.Send(b.interval, armOutbox)
	}
	ctx.Pause()
	return axon.Continue
}

// printer writes everything on its inbox to out, prefixed by its label.
type printer struct {
	label   string
	out     io.Writer
	stopped func()
}

func (p *printer) Main(ctx axon.Context) axon.Status {
	for _, msg := range ctx.DrainInbox(axon.InboxName) {
		fmt.Fprintf(p.out, "%s: %v\n", p.label, msg)
	}
	for _, msg := range ctx.DrainInbox(axon.ControlName) {
		if axon.IsShutdown(msg) {
			return axon.Done
		}
	}
	ctx.Pause()
	return axon.Continue
}

func (p *printer) Stopped() { p.stopped() }

func runDemo(cmd *cobra.Command, args []string) error {
	if demoBeats < 1 {
		return fmt.Errorf("--beats must be at least 1, got %d", demoBeats)
	}
	out := cmd.OutOrStdout()
	s := axon.NewScheduler(schedulerOptions()...)
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		wg.Wait()
		cancel()
	}()

	b := s.Create(axon.NewProps(&beat{count: demoBeats, interval: demoInterval}).
		WithName("beat").
		WithOutboxes(armOutbox))
	tm := s.Create(timer.New())
	metronome := s.Create(chassis.Graphline(
		map[string]axon.ID{"beat": b, "timer": tm},
		chassis.Wire{From: "beat", FromBox: armOutbox, To: "timer", ToBox: axon.InboxName},
		chassis.Wire{From: "timer", FromBox: axon.OutboxName, To: "beat", ToBox: axon.InboxName},
		chassis.Wire{From: "beat", FromBox: axon.OutboxName, To: chassis.Self, ToBox: axon.OutboxName},
		chassis.Wire{From: "beat", FromBox: axon.SignalName, To: "timer", ToBox: axon.ControlName},
	).WithName("metronome"))
	split := s.Spawn(splitter.NewWithSource(metronome))
	for _, label := range []string{"left", "right"} {
		p := s.Create(axon.NewProps(&printer{label: label, out: out, stopped: wg.Done}).WithName(label))
		s.Spawn(splitter.NewPlug(split, p))
	}

	s.RunUntilIdle(3)
	fmt.Fprintln(out, render.Topology(s.Topology()))

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
