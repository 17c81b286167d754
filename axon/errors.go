package axon

import (
	"errors"
	"fmt"
)

// Sentinel errors. Concrete errors returned by the runtime wrap or match one
// of these so callers can use errors.Is.
var (
	ErrLookup         = errors.New("axon: lookup failed")
	ErrNoSpaceInBox   = errors.New("axon: no space in box")
	ErrServiceExists  = errors.New("axon: service already registered")
	ErrUnknownService = errors.New("axon: unknown service")
	ErrNotAdaptive    = errors.New("axon: component is not adaptive")
	ErrStopped        = errors.New("axon: component stopped")
	ErrReservedBox    = errors.New("axon: reserved box cannot be deleted")
)

// LookupKind says what kind of name a LookupError failed to resolve.
type LookupKind string

const (
	LookupInbox     LookupKind = "inbox"
	LookupOutbox    LookupKind = "outbox"
	LookupComponent LookupKind = "component"
	LookupLinkage   LookupKind = "linkage"
	LookupResource  LookupKind = "resource"
	LookupValue     LookupKind = "value"
)

// LookupError reports an unknown box, component, linkage or tracked resource.
type LookupError struct {
	Kind      LookupKind
	Name      string
	Component ID
}

func (e *LookupError) Error() string {
	if e.Component != 0 {
		return fmt.Sprintf("axon: unknown %s %q on %s", e.Kind, e.Name, e.Component)
	}
	return fmt.Sprintf("axon: unknown %s %q", e.Kind, e.Name)
}

// Is makes errors.Is(err, ErrLookup) succeed.
func (e *LookupError) Is(target error) bool { return target == ErrLookup }

// NoSpaceInBoxError is returned by Send when a bounded sink is full.
// Nothing has been delivered when it is returned.
type NoSpaceInBoxError struct {
	Box  Endpoint
	Size int
}

func (e *NoSpaceInBoxError) Error() string {
	return fmt.Sprintf("axon: no space in %s (size %d)", e.Box, e.Size)
}

func (e *NoSpaceInBoxError) Is(target error) bool { return target == ErrNoSpaceInBox }

func lookupErr(kind LookupKind, name string, owner ID) *LookupError {
	return &LookupError{Kind: kind, Name: name, Component: owner}
}
