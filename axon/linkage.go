package axon

import "fmt"

// LinkageID identifies a linkage registered with a scheduler.
type LinkageID uint64

// PassthroughKind selects which kinds of boxes a linkage joins.
type PassthroughKind int

const (
	// Normal joins an outbox to an inbox.
	Normal PassthroughKind = iota
	// Inbound aliases a composite's inbox onto a child's inbox.
	Inbound
	// Outbound forwards a child's outbox to the composite's outbox.
	Outbound
)

func (k PassthroughKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return fmt.Sprintf("passthrough(%d)", int(k))
	}
}

// Linkage is a directed edge from a source box to a sink box.
type Linkage struct {
	ID          LinkageID
	Source      Endpoint
	Sink        Endpoint
	Passthrough PassthroughKind
	// Owner is the component that created the linkage, 0 for links made
	// directly on the scheduler.
	Owner ID
}

func (l *Linkage) sourceKey() boxKey {
	return boxKey{ep: l.Source, inbox: l.Passthrough == Inbound}
}

func (l *Linkage) sinkKey() boxKey {
	return boxKey{ep: l.Sink, inbox: l.Passthrough != Outbound}
}

func (l *Linkage) mentions(id ID) bool {
	return l.Source.Component == id || l.Sink.Component == id
}

func (l Linkage) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", l.Source, l.Passthrough, l.Sink)
}

// boxKey distinguishes an inbox from an outbox of the same name.
type boxKey struct {
	ep    Endpoint
	inbox bool
}
