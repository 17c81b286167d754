package axon

import (
	"fmt"
	"sort"
)

// Tracker is the scheduler-wide registry of named services (inbox endpoints)
// and shared values. Like the scheduler it is only touched from the
// scheduler goroutine.
type Tracker struct {
	sched    *Scheduler
	services map[string]Endpoint
	values   map[string]any
}

func newTracker(s *Scheduler) *Tracker {
	return &Tracker{
		sched:    s,
		services: make(map[string]Endpoint),
		values:   make(map[string]any),
	}
}

// RegisterService publishes an inbox under name.
func (t *Tracker) RegisterService(name string, ep Endpoint) error {
	if _, ok := t.services[name]; ok {
		return fmt.Errorf("%w: %q", ErrServiceExists, name)
	}
	c, err := t.sched.lookup(ep.Component)
	if err != nil {
		return err
	}
	if _, ok := c.inboxes[ep.Box]; !ok {
		return lookupErr(LookupInbox, ep.Box, ep.Component)
	}
	t.services[name] = ep
	t.sched.log.Debug().Str("service", name).Stringer("endpoint", ep).Msg("service registered")
	return nil
}

// DeregisterService removes a service.
func (t *Tracker) DeregisterService(name string) error {
	if _, ok := t.services[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	delete(t.services, name)
	t.sched.log.Debug().Str("service", name).Msg("service deregistered")
	return nil
}

// RetrieveService returns the endpoint registered under name.
func (t *Tracker) RetrieveService(name string) (Endpoint, error) {
	ep, ok := t.services[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return ep, nil
}

// Services returns the registered service names, sorted.
func (t *Tracker) Services() []string {
	names := make([]string, 0, len(t.services))
	for n := range t.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TrackValue records a new named value.
func (t *Tracker) TrackValue(name string, v any) error {
	if _, ok := t.values[name]; ok {
		return fmt.Errorf("%w: value %q", ErrServiceExists, name)
	}
	t.values[name] = v
	return nil
}

// UpdateValue replaces a tracked value.
func (t *Tracker) UpdateValue(name string, v any) error {
	if _, ok := t.values[name]; !ok {
		return lookupErr(LookupValue, name, 0)
	}
	t.values[name] = v
	return nil
}

// RetrieveValue returns a tracked value.
func (t *Tracker) RetrieveValue(name string) (any, error) {
	v, ok := t.values[name]
	if !ok {
		return nil, lookupErr(LookupValue, name, 0)
	}
	return v, nil
}
