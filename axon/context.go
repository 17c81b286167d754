package axon

import (
	"time"

	"github.com/rs/zerolog"
)

// Context is what a body sees of its own component during a step.
type Context interface {
	// Self returns the ID of the component being stepped.
	Self() ID
	// Name returns the component's display name.
	Name() string
	// Scheduler returns the scheduler running this component.
	Scheduler() *Scheduler
	// Logger returns a logger tagged with the component.
	Logger() *zerolog.Logger
	// Now returns the scheduler clock's current time.
	Now() time.Time

	// Send delivers msg to every sink bound to outbox. It fails with a
	// *NoSpaceInBoxError, delivering nothing, when any sink is full.
	Send(msg Message, outbox string) error
	// Recv pops the oldest message of inbox. It panics with a *LookupError
	// when the inbox does not exist.
	Recv(inbox string) (Message, bool)
	// DataReady reports whether inbox holds a message.
	DataReady(inbox string) bool
	// AnyReady reports whether any inbox holds a message.
	AnyReady() bool
	// DrainInbox pops everything currently queued in inbox.
	DrainInbox(inbox string) []Message

	// Pause takes the component off the run queue after this step until a
	// message arrives or a child stops.
	Pause()
	// PauseFor is Pause with a deadline.
	PauseFor(d time.Duration)

	// SetInboxSize bounds inbox; Unbounded lifts the limit.
	SetInboxSize(inbox string, size int) error
}

// AdaptiveContext extends Context with runtime changes to boxes, linkages,
// children and tracked resources.
type AdaptiveContext interface {
	Context

	AddInbox(name string) string
	AddOutbox(name string) string
	DeleteInbox(name string) error
	DeleteOutbox(name string) error

	Link(src, dst Endpoint, kind PassthroughKind) (LinkageID, error)
	Unlink(id LinkageID) error
	// UnlinkComponent removes the linkages this component owns that mention id.
	UnlinkComponent(id ID)

	TrackResource(resource any, inbox string) error
	RetrieveTrackedResource(inbox string) (any, error)
	TrackResourceInformation(resource any, inboxes, outboxes []string, info any) error
	RetrieveTrackedResourceInformation(resource any) (ResourceInfo, error)
	CeaseTrackingResource(resource any) error

	AddChildren(ids ...ID) error
	RemoveChild(id ID)
	Children() []ID
	// ChildrenDone forgets children that have stopped and reports whether
	// none remain.
	ChildrenDone() bool
	Activate(id ID) error
}

// ResourceInfo is what TrackResourceInformation records for a resource.
type ResourceInfo struct {
	Inboxes  []string
	Outboxes []string
	Info     any
}
