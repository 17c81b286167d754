package splitter

import "github.com/lguibr/kamaelia/axon"

// ConfigurationName is the splitter inbox that takes AddSink and RemoveSink.
const ConfigurationName = "configuration"

// AddSink asks a splitter to copy its input to Sink's Inbox and its control
// messages to Sink's Control. Either box may be empty. Adding the same
// (component, box) twice takes a second reference rather than a second copy.
type AddSink struct {
	Sink    axon.ID
	Inbox   string
	Control string
}

// RemoveSink drops one reference taken by an AddSink with the same fields.
type RemoveSink struct {
	Sink    axon.ID
	Inbox   string
	Control string
}
