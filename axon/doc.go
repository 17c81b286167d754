// Package axon is a cooperative, message-passing component runtime.
//
// Components own named inboxes and outboxes and never share memory; they
// talk only through linkages registered with a Scheduler. A component's body
// is a step function: the scheduler calls Main once per tick and the body
// returns Continue to stay scheduled or Done to finish. Bodies that have
// nothing to do call Pause (or PauseFor) and are resumed when a message is
// delivered to them, a child stops, or the deadline passes.
//
// Every component has the reserved inboxes "inbox" and "control" and the
// reserved outboxes "outbox" and "signal". Shutdown requests travel on
// control and are forwarded on signal, see Lifecycle.
//
// Adaptive components (NewAdaptiveProps) can add and remove boxes, create
// linkages and adopt children at runtime. Threaded components
// (NewThreadedProps) run a blocking body on their own goroutine and exchange
// messages with the cooperative side through bounded queues.
package axon
