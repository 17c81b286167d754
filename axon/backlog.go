package axon

import "errors"

type pendingSend struct {
	msg    Message
	outbox string
}

// Backlog holds messages a body could not send because a sink was full and
// retries them in order. Bodies call Flush at the top of each step and pause
// when the backlog is not empty; the full sink wakes them when it is read.
type Backlog struct {
	queue []pendingSend
}

// Send queues msg behind anything already waiting and flushes.
func (b *Backlog) Send(ctx Context, msg Message, outbox string) error {
	b.queue = append(b.queue, pendingSend{msg: msg, outbox: outbox})
	return b.Flush(ctx)
}

// Flush sends queued messages until one hits a full sink. Errors other than
// ErrNoSpaceInBox drop the offending message and are returned.
func (b *Backlog) Flush(ctx Context) error {
	for len(b.queue) > 0 {
		p := b.queue[0]
		err := ctx.Send(p.msg, p.outbox)
		if errors.Is(err, ErrNoSpaceInBox) {
			return nil
		}
		b.queue[0] = pendingSend{}
		b.queue = b.queue[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of messages waiting.
func (b *Backlog) Len() int { return len(b.queue) }

// Empty reports whether nothing is waiting.
func (b *Backlog) Empty() bool { return len(b.queue) == 0 }
