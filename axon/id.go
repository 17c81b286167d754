package axon

import "fmt"

// ID identifies a component within its scheduler. IDs are never reused, so a
// stopped component's ID keeps reporting Stopped.
type ID uint64

// String returns the string representation of the ID.
func (id ID) String() string {
	return fmt.Sprintf("component-%d", uint64(id))
}

// Endpoint names one box of one component.
type Endpoint struct {
	Component ID
	Box       string
}

// At is shorthand for Endpoint{id, box}.
func At(id ID, box string) Endpoint { return Endpoint{Component: id, Box: box} }

func (e Endpoint) String() string {
	return fmt.Sprintf("%s.%s", e.Component, e.Box)
}
