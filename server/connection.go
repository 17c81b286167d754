package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/lguibr/kamaelia/axon"
	"golang.org/x/net/websocket"
)

const readTimeout = 90 * time.Second

// Connection is the threaded component owning one websocket. Text frames
// from the client leave on outbox; anything arriving on inbox is written to
// the client. When the client goes away it emits ProducerFinished on signal;
// a shutdown on control closes the socket and is forwarded on signal.
type Connection struct {
	conn *websocket.Conn
	addr string
	done chan struct{}
}

// NewConnection returns the component for ws together with a channel
// closed once it has finished with the socket.
func NewConnection(ws *websocket.Conn) (*Connection, <-chan struct{}) {
	addr := "unknown"
	if ws != nil && ws.Request() != nil {
		addr = ws.Request().RemoteAddr
	}
	c := &Connection{conn: ws, addr: addr, done: make(chan struct{})}
	return c, c.done
}

// Props returns Props for c.
func (c *Connection) Props() *axon.Props {
	return axon.NewThreadedProps(c).WithName("ws " + c.addr)
}

func (c *Connection) Run(ctx axon.ThreadContext) {
	log := ctx.Logger().With().Str("remote", c.addr).Logger()
	defer close(c.done)
	defer c.conn.Close()

	readerDone := make(chan struct{})
	go c.readLoop(ctx, readerDone)

	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			if err := ctx.Send(axon.ProducerFinished(ctx.Self()), axon.SignalName); err != nil && !errors.Is(err, axon.ErrStopped) {
				log.Warn().Err(err).Msg("could not signal disconnect")
			}
			log.Debug().Msg("client disconnected")
			return
		case <-ctx.Ready():
			for ctx.DataReady(axon.InboxName) {
				msg, _ := ctx.Recv(axon.InboxName)
				if err := write(c.conn, msg); err != nil {
					log.Debug().Err(err).Msg("write failed, closing")
					_ = c.conn.Close()
					break
				}
			}
			for ctx.DataReady(axon.ControlName) {
				msg, _ := ctx.Recv(axon.ControlName)
				if !axon.IsShutdown(msg) {
					continue
				}
				_ = c.conn.Close()
				_ = ctx.TrySend(msg, axon.SignalName)
				return
			}
		}
	}
}

// readLoop hands every frame the client sends to the component.
func (c *Connection) readLoop(ctx axon.ThreadContext, done chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			ctx.Logger().Error().Str("panic", fmt.Sprint(r)).Str("stack", string(debug.Stack())).Msg("read loop panicked")
		}
		close(done)
	}()
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		var text string
		err := websocket.Message.Receive(c.conn, &text)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.As(err, &netErr) && netErr.Timeout():
				ctx.Logger().Debug().Str("remote", c.addr).Msg("read timeout, assuming disconnect")
			default:
				ctx.Logger().Debug().Err(err).Str("remote", c.addr).Msg("read failed")
			}
			return
		}
		if err := ctx.Send(text, axon.OutboxName); err != nil {
			return
		}
	}
}

// write sends strings as text frames, byte slices as binary frames and
// anything else as JSON.
func write(ws *websocket.Conn, msg axon.Message) error {
	switch m := msg.(type) {
	case string:
		return websocket.Message.Send(ws, m)
	case []byte:
		return websocket.Message.Send(ws, m)
	case json.RawMessage:
		return websocket.Message.Send(ws, string(m))
	default:
		return websocket.JSON.Send(ws, m)
	}
}
