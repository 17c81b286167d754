package timer

import (
	"container/heap"
	"time"
)

type event struct {
	when   time.Time
	seq    uint64
	handle Handle
}

// events is a min-heap by time, then by arrival.
type events []event

func (e events) Len() int { return len(e) }

func (e events) Less(i, j int) bool {
	if e[i].when.Equal(e[j].when) {
		return e[i].seq < e[j].seq
	}
	return e[i].when.Before(e[j].when)
}

func (e events) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *events) Push(x any) { *e = append(*e, x.(event)) }

func (e *events) Pop() any {
	old := *e
	n := len(old)
	ev := old[n-1]
	*e = old[:n-1]
	return ev
}

type schedule struct {
	events events
	seq    uint64
}

func (s *schedule) add(when time.Time, h Handle) {
	s.seq++
	heap.Push(&s.events, event{when: when, seq: s.seq, handle: h})
}

// due pops every event at or before now, in order.
func (s *schedule) due(now time.Time) []event {
	var out []event
	for len(s.events) > 0 && !s.events[0].when.After(now) {
		out = append(out, heap.Pop(&s.events).(event))
	}
	return out
}

func (s *schedule) next() (time.Time, bool) {
	if len(s.events) == 0 {
		return time.Time{}, false
	}
	return s.events[0].when, true
}
