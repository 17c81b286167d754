package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/backplane"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

// Server bridges websocket clients onto a backplane. Every connection both
// publishes what the client sends and receives everything published.
type Server struct {
	sched     *axon.Scheduler
	backplane string
	log       zerolog.Logger

	mu    sync.Mutex // Protects conns
	conns map[*websocket.Conn]axon.ID
}

// New creates the named backplane on sched and returns a server bridging
// onto it. It must be called before sched starts running on another
// goroutine; afterwards the server only reaches sched through Post.
func New(sched *axon.Scheduler, name string, log zerolog.Logger) (*Server, error) {
	props, err := backplane.New(sched, name)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	sched.Spawn(props)
	return &Server{
		sched:     sched,
		backplane: name,
		log:       log.With().Str("component", "server").Str("backplane", name).Logger(),
		conns:     make(map[*websocket.Conn]axon.ID),
	}, nil
}

// Handler returns the server's routes: /subscribe upgrades to a websocket
// and /topology reports the scheduler's current topology as JSON.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/subscribe", websocket.Handler(s.HandleSubscribe()))
	mux.HandleFunc("/topology", s.HandleTopology())
	return mux
}

// Connections returns the number of clients currently attached.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) openConnection(ws *websocket.Conn, id axon.ID) {
	s.mu.Lock()
	s.conns[ws] = id
	s.mu.Unlock()
}

func (s *Server) closeConnection(ws *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, ws)
	s.mu.Unlock()
	_ = ws.Close()
}
