package axon

import (
	"fmt"
	"reflect"
)

// adaptiveCtx is the AdaptiveContext handed to adaptive bodies.
type adaptiveCtx struct {
	*component
}

func isReserved(name string) bool {
	switch name {
	case InboxName, ControlName, OutboxName, SignalName:
		return true
	}
	return false
}

func (a adaptiveCtx) AddInbox(name string) string {
	c := a.component
	n := c.uniqueName(name, func(x string) bool { _, ok := c.inboxes[x]; return ok })
	c.inboxes[n] = newMailbox(c.id, n, c.sched.defaultInboxSize)
	return n
}

func (a adaptiveCtx) AddOutbox(name string) string {
	c := a.component
	n := c.uniqueName(name, c.hasOutbox)
	c.outboxes[n] = struct{}{}
	return n
}

func (a adaptiveCtx) DeleteInbox(name string) error {
	c := a.component
	if isReserved(name) {
		return fmt.Errorf("%w: %s", ErrReservedBox, name)
	}
	if _, ok := c.inboxes[name]; !ok {
		return lookupErr(LookupInbox, name, c.id)
	}
	c.sched.po.unlinkBox(boxKey{ep: At(c.id, name), inbox: true})
	delete(c.inboxes, name)
	delete(c.resources, name)
	return nil
}

func (a adaptiveCtx) DeleteOutbox(name string) error {
	c := a.component
	if isReserved(name) {
		return fmt.Errorf("%w: %s", ErrReservedBox, name)
	}
	if !c.hasOutbox(name) {
		return lookupErr(LookupOutbox, name, c.id)
	}
	c.sched.po.unlinkBox(boxKey{ep: At(c.id, name), inbox: false})
	delete(c.outboxes, name)
	return nil
}

func (a adaptiveCtx) Link(src, dst Endpoint, kind PassthroughKind) (LinkageID, error) {
	return a.sched.link(src, dst, kind, a.id)
}

func (a adaptiveCtx) Unlink(id LinkageID) error {
	return a.sched.Unlink(id)
}

func (a adaptiveCtx) UnlinkComponent(id ID) {
	self := a.id
	a.sched.po.unlinkWhere(func(l *Linkage) bool {
		return l.Owner == self && l.mentions(id)
	})
}

func (a adaptiveCtx) TrackResource(resource any, inbox string) error {
	c := a.component
	if _, ok := c.inboxes[inbox]; !ok {
		return lookupErr(LookupInbox, inbox, c.id)
	}
	if c.resources == nil {
		c.resources = make(map[string]any)
	}
	c.resources[inbox] = resource
	return nil
}

func (a adaptiveCtx) RetrieveTrackedResource(inbox string) (any, error) {
	r, ok := a.resources[inbox]
	if !ok {
		return nil, lookupErr(LookupResource, inbox, a.id)
	}
	return r, nil
}

func (a adaptiveCtx) TrackResourceInformation(resource any, inboxes, outboxes []string, info any) error {
	c := a.component
	if !hashable(resource) {
		return fmt.Errorf("axon: resource %T cannot be used as a key", resource)
	}
	for _, n := range inboxes {
		if _, ok := c.inboxes[n]; !ok {
			return lookupErr(LookupInbox, n, c.id)
		}
	}
	for _, n := range outboxes {
		if !c.hasOutbox(n) {
			return lookupErr(LookupOutbox, n, c.id)
		}
	}
	if c.resInfo == nil {
		c.resInfo = make(map[any]ResourceInfo)
	}
	c.resInfo[resource] = ResourceInfo{
		Inboxes:  append([]string(nil), inboxes...),
		Outboxes: append([]string(nil), outboxes...),
		Info:     info,
	}
	return nil
}

func (a adaptiveCtx) RetrieveTrackedResourceInformation(resource any) (ResourceInfo, error) {
	if !hashable(resource) {
		return ResourceInfo{}, lookupErr(LookupResource, fmt.Sprint(resource), a.id)
	}
	info, ok := a.resInfo[resource]
	if !ok {
		return ResourceInfo{}, lookupErr(LookupResource, fmt.Sprint(resource), a.id)
	}
	return info, nil
}

func (a adaptiveCtx) CeaseTrackingResource(resource any) error {
	c := a.component
	found := false
	if hashable(resource) {
		if _, ok := c.resInfo[resource]; ok {
			delete(c.resInfo, resource)
			found = true
		}
	}
	for inbox, r := range c.resources {
		if sameResource(r, resource) {
			delete(c.resources, inbox)
			found = true
		}
	}
	if !found {
		return lookupErr(LookupResource, fmt.Sprint(resource), c.id)
	}
	return nil
}

func (a adaptiveCtx) AddChildren(ids ...ID) error {
	c := a.component
	for _, id := range ids {
		child, err := c.sched.lookup(id)
		if err != nil {
			return err
		}
		if child.parent == c.id {
			continue
		}
		child.parent = c.id
		c.children = append(c.children, id)
	}
	return nil
}

func (a adaptiveCtx) RemoveChild(id ID) {
	c := a.component
	for i, child := range c.children {
		if child == id {
			c.children = append(c.children[:i], c.children[i+1:]...)
			break
		}
	}
	if child, ok := c.sched.components[id]; ok && child.parent == c.id {
		child.parent = 0
	}
	a.UnlinkComponent(id)
}

func (a adaptiveCtx) Children() []ID {
	return append([]ID(nil), a.children...)
}

func (a adaptiveCtx) ChildrenDone() bool {
	for _, id := range a.Children() {
		if a.sched.State(id) == Stopped {
			a.RemoveChild(id)
		}
	}
	return len(a.children) == 0
}

func (a adaptiveCtx) Activate(id ID) error {
	return a.sched.Activate(id)
}

func hashable(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Comparable()
}

func sameResource(a, b any) bool {
	if !hashable(a) || !hashable(b) {
		return false
	}
	return a == b
}
