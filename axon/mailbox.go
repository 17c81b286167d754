package axon

// Reserved box names present on every component.
const (
	InboxName   = "inbox"
	ControlName = "control"
	OutboxName  = "outbox"
	SignalName  = "signal"
)

// Unbounded is the inbox size meaning "no limit".
const Unbounded = 0

// Message is anything a component puts in a box.
type Message = any

// mailbox is a FIFO inbox owned by one component. Only the owner pops from
// it; any linked sender pushes.
type mailbox struct {
	name  string
	owner ID
	queue []Message
	head  int
	size  int
}

func newMailbox(owner ID, name string, size int) *mailbox {
	return &mailbox{name: name, owner: owner, size: size}
}

func (m *mailbox) len() int { return len(m.queue) - m.head }

// room reports how many more messages fit, -1 when unbounded.
func (m *mailbox) room() int {
	if m.size <= 0 {
		return -1
	}
	r := m.size - m.len()
	if r < 0 {
		return 0
	}
	return r
}

func (m *mailbox) push(msg Message) {
	m.queue = append(m.queue, msg)
}

func (m *mailbox) pop() (Message, bool) {
	if m.len() == 0 {
		return nil, false
	}
	msg := m.queue[m.head]
	m.queue[m.head] = nil
	m.head++
	// Compact once the dead prefix dominates.
	if m.head > 32 && m.head*2 >= len(m.queue) {
		n := copy(m.queue, m.queue[m.head:])
		m.queue = m.queue[:n]
		m.head = 0
	}
	return msg, true
}

func (m *mailbox) drain() []Message {
	out := make([]Message, m.len())
	copy(out, m.queue[m.head:])
	m.queue = nil
	m.head = 0
	return out
}

func (m *mailbox) endpoint() Endpoint { return Endpoint{Component: m.owner, Box: m.name} }
