package timer

import (
	"time"

	"github.com/lguibr/kamaelia/axon"
)

// Tracker names of the shared timer core's inboxes.
const (
	RegisterService = "TimerRegister"
	RequestService  = "TimerRequest"
)

// RegisterName is the core inbox taking Register and Deregister.
const RegisterName = "register"

// Handle identifies a timer client. It must be comparable.
type Handle any

// Register routes events for Handle to Dest. With Passthrough Outbound, Dest
// is an outbox of the client and events come straight out of it.
type Register struct {
	Handle      Handle
	Dest        axon.Endpoint
	Passthrough axon.PassthroughKind
}

// Deregister drops a handle; its pending requests are discarded when due.
type Deregister struct {
	Handle Handle
}

// Request asks for When to be delivered to Handle's destination at When.
type Request struct {
	When   time.Time
	Handle Handle
}
