// File: server/handlers.go
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/backplane"
	"github.com/lguibr/kamaelia/chassis"
	"golang.org/x/net/websocket"
)

const topologyTimeout = 2 * time.Second

// HandleSubscribe attaches each websocket to the backplane through a
// graphline of the connection, a subscriber and a publisher, and holds the
// handler open until the connection component has finished.
func (s *Server) HandleSubscribe() func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("panic", fmt.Sprint(r)).Str("stack", string(debug.Stack())).Msg("subscribe handler panicked")
			}
			s.closeConnection(ws)
		}()

		conn, done := NewConnection(ws)
		s.sched.Post(func(sched *axon.Scheduler) {
			connID := sched.Create(conn.Props())
			sub := sched.Create(backplane.SubscribeTo(s.backplane))
			pub := sched.Create(backplane.PublishTo(s.backplane))
			sched.Spawn(chassis.Graphline(
				map[string]axon.ID{"conn": connID, "sub": sub, "pub": pub},
				chassis.Wire{From: "sub", FromBox: axon.OutboxName, To: "conn", ToBox: axon.InboxName},
				chassis.Wire{From: "conn", FromBox: axon.OutboxName, To: "pub", ToBox: axon.InboxName},
				chassis.Wire{From: "conn", FromBox: axon.SignalName, To: "pub", ToBox: axon.ControlName},
				chassis.Wire{From: "conn", FromBox: axon.SignalName, To: "sub", ToBox: axon.ControlName},
			).WithName("client " + conn.addr))
			s.openConnection(ws, connID)
			s.log.Debug().Str("remote", conn.addr).Stringer("component", connID).Msg("client attached")
		})

		select {
		case <-done:
		case <-ws.Request().Context().Done():
		}
	}
}

// HandleTopology serves the scheduler's topology snapshot as JSON.
func (s *Server) HandleTopology() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan axon.Topology, 1)
		s.sched.Post(func(sched *axon.Scheduler) { reply <- sched.Topology() })

		var top axon.Topology
		select {
		case top = <-reply:
		case <-r.Context().Done():
			return
		case <-time.After(topologyTimeout):
			http.Error(w, "scheduler did not answer", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(top); err != nil {
			s.log.Warn().Err(err).Msg("could not write topology")
		}
	}
}
