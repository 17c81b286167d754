package selector

import "github.com/lguibr/kamaelia/axon"

// Tracker names of the shared selector's notify and control inboxes.
const (
	Service         = "selector"
	ShutdownService = "selectorshutdown"
)

// NotifyName is the inbox taking registration messages.
const NotifyName = "notify"

// Selectable is anything with a file descriptor. *os.File and net conns
// obtained through File() qualify.
type Selectable interface {
	Fd() uintptr
}

// NewReader asks for Selectable to be sent to Dest once it is readable.
type NewReader struct {
	Selectable Selectable
	Dest       axon.Endpoint
}

// NewWriter asks for Selectable to be sent to Dest once it is writable.
type NewWriter struct {
	Selectable Selectable
	Dest       axon.Endpoint
}

// NewExceptional asks for Selectable to be sent to Dest once it has an
// exceptional condition pending.
type NewExceptional struct {
	Selectable Selectable
	Dest       axon.Endpoint
}

// RemoveReader cancels a pending NewReader for Selectable.
type RemoveReader struct{ Selectable Selectable }

// RemoveWriter cancels a pending NewWriter for Selectable.
type RemoveWriter struct{ Selectable Selectable }

// RemoveExceptional cancels a pending NewExceptional for Selectable.
type RemoveExceptional struct{ Selectable Selectable }
