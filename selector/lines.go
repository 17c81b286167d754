package selector

import (
	"bytes"
	"errors"
	"io"

	"github.com/lguibr/kamaelia/axon"
)

const notifyOutbox = "_selector"

// ReadSelectable is a Selectable that can be read once ready, such as
// os.Stdin or one end of a pipe.
type ReadSelectable interface {
	Selectable
	io.Reader
}

// LineReader emits each line read from a ReadSelectable on outbox, without
// the trailing newline. It reads only after the shared selector reports the
// source readable, so it never blocks the scheduler. At end of input it
// emits any unterminated tail, then ProducerFinished on signal.
type LineReader struct {
	src     ReadSelectable
	buf     []byte
	pending []byte
	started bool
	lc      axon.Lifecycle
	out     axon.Backlog
	eof     bool
	leaving bool
}

// NewLineReader returns Props for a LineReader over src.
func NewLineReader(src ReadSelectable) *axon.Props {
	return axon.NewAdaptiveProps(&LineReader{src: src, buf: make([]byte, 4096)}).
		WithName("line-reader").
		WithOutboxes(notifyOutbox)
}

func (lr *LineReader) Main(ctx axon.AdaptiveContext) axon.Status {
	if !lr.started {
		lr.started = true
		notify, _, err := Services(ctx.Scheduler())
		if err != nil {
			ctx.Logger().Error().Err(err).Msg("selector unavailable")
			return axon.Done
		}
		if _, err := ctx.Link(axon.At(ctx.Self(), notifyOutbox), notify, axon.Normal); err != nil {
			ctx.Logger().Error().Err(err).Msg("could not reach selector")
			return axon.Done
		}
		lr.arm(ctx)
	}
	if err := lr.out.Flush(ctx); err != nil {
		ctx.Logger().Debug().Err(err).Msg("line dropped")
	}
	if lr.eof {
		return lr.finish(ctx)
	}
	if lr.lc.Poll(ctx) != axon.LifecycleRunning {
		if !lr.leaving {
			lr.leaving = true
			_ = ctx.Send(RemoveReader{Selectable: lr.src}, notifyOutbox)
		}
		return lr.lc.Finish(ctx)
	}
	if len(ctx.DrainInbox(axon.InboxName)) > 0 {
		lr.read(ctx)
		if lr.eof {
			return lr.finish(ctx)
		}
		lr.arm(ctx)
	}
	ctx.Pause()
	return axon.Continue
}

func (lr *LineReader) arm(ctx axon.AdaptiveContext) {
	msg := NewReader{Selectable: lr.src, Dest: axon.At(ctx.Self(), axon.InboxName)}
	if err := ctx.Send(msg, notifyOutbox); err != nil {
		ctx.Logger().Warn().Err(err).Msg("could not arm selector")
	}
}

func (lr *LineReader) read(ctx axon.AdaptiveContext) {
	n, err := lr.src.Read(lr.buf)
	lr.pending = append(lr.pending, lr.buf[:n]...)
	for {
		i := bytes.IndexByte(lr.pending, '\n')
		if i < 0 {
			break
		}
		lr.emit(ctx, string(bytes.TrimSuffix(lr.pending[:i], []byte("\r"))))
		lr.pending = lr.pending[i+1:]
	}
	if err != nil {
		if !errors.Is(err, io.EOF) {
			ctx.Logger().Debug().Err(err).Msg("read failed")
		}
		if len(lr.pending) > 0 {
			lr.emit(ctx, string(lr.pending))
			lr.pending = nil
		}
		lr.eof = true
	}
}

func (lr *LineReader) emit(ctx axon.AdaptiveContext, line string) {
	if err := lr.out.Send(ctx, line, axon.OutboxName); err != nil {
		ctx.Logger().Debug().Err(err).Msg("line dropped")
	}
}

// finish waits for buffered lines to drain before signalling.
func (lr *LineReader) finish(ctx axon.AdaptiveContext) axon.Status {
	if !lr.out.Empty() {
		ctx.Pause()
		return axon.Continue
	}
	err := ctx.Send(axon.ProducerFinished(ctx.Self()), axon.SignalName)
	if errors.Is(err, axon.ErrNoSpaceInBox) {
		ctx.Pause()
		return axon.Continue
	}
	if err != nil {
		ctx.Logger().Debug().Err(err).Msg("could not signal end of input")
	}
	return axon.Done
}
