package collector

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wtask/collector/internal/collector/queue"
	"github.com/wtask/collector/internal/collector/tail"
	"github.com/wtask/collector/pkg/background"
)

// Server - multi-client TCP server which funnels every received chunk
// into a single ordered queue drained by one consumer. All bookkeeping
// is instance-scoped, several servers may coexist in one process.
type Server struct {
	address       string
	port          uint
	maxClients    int
	queueCapacity int
	queuePolicy   queue.Policy
	stopPolicy    StopPolicy
	readBufSize   int
	tailSize      int
	out           io.Writer
	sink          func(queue.Message)
	logger        zerolog.Logger
	recent        *tail.Buffer

	mu       sync.Mutex
	state    State
	listener net.Listener
	queue    *queue.Queue
	clients  *registry
	scope    *background.Scope

	nextID  uint64
	refused uint64
	served  uint64
}

// New - builds server for the given port. Port 0 lets the OS choose a
// free one on Bind, the choice then sticks for restarts.
func New(port uint, options ...serverOption) (*Server, error) {
	s := &Server{
		port:          port,
		maxClients:    64,
		queueCapacity: 1024,
		queuePolicy:   queue.PolicyBlock,
		stopPolicy:    DrainOnStop,
		readBufSize:   255,
		tailSize:      32,
		out:           os.Stdout,
		logger:        zerolog.Nop(),
		state:         StateCreated,
	}
	if err := setup(s, options...); err != nil {
		return nil, err
	}
	recent, err := tail.New(s.tailSize)
	if err != nil {
		return nil, err
	}
	s.recent = recent
	return s, nil
}

// Bind - creates the TCP listening socket on all configured interfaces.
// Allowed for a freshly created or a stopped server. The failed attempt
// is surfaced as *BindError and may be retried by the caller.
func (s *Server) Bind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bind()
}

func (s *Server) bind() error {
	switch s.state {
	case StateCreated, StateStopped, StateRestarting:
	default:
		return &BindError{Port: s.port, Err: ErrInvalidState}
	}
	node := net.JoinHostPort(s.address, strconv.FormatUint(uint64(s.port), 10))
	listener, err := net.Listen("tcp", node)
	if err != nil {
		return &BindError{Port: s.port, Err: err}
	}
	if s.port == 0 {
		if addr, ok := listener.Addr().(*net.TCPAddr); ok {
			// lock the OS-chosen port, restart must reuse it
			s.port = uint(addr.Port)
		}
	}
	s.listener = listener
	s.state = StateBound
	s.logger.Info().Str("addr", formatAddress(listener.Addr())).Msg("listener bound")
	return nil
}

// Listen - brings a bound server into the listening state: provisions a
// fresh queue and registry for the run and starts the single consumer.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listen()
}

func (s *Server) listen() error {
	if s.state != StateBound {
		return &ListenError{Err: ErrInvalidState}
	}
	q, err := queue.New(s.queueCapacity, s.queuePolicy)
	if err != nil {
		return &ListenError{Err: err}
	}
	s.queue = q
	s.clients = newRegistry()
	s.scope = background.NewScope()
	c := newConsumer(q, s.out, s.sink, s.recent, s.logger)
	s.scope.Go(func(_ context.Context) {
		c.run()
	})
	s.state = StateListening
	s.logger.Info().Uint("port", s.port).Msg("server is listening")
	return nil
}

// AcceptLoop - blocks accepting connections until the server leaves the
// listening state. Every accepted connection gets the next client id, a
// registry entry and its own handler goroutine before the next accept.
// A failed accept is logged and the loop continues.
func (s *Server) AcceptLoop() error {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return ErrInvalidState
	}
	listener := s.listener
	q := s.queue
	clients := s.clients
	scope := s.scope
	maxClients := s.maxClients
	bufSize := s.readBufSize
	// register in the scope before the state lock is released, Shutdown
	// must not pass the scope wait between the state check and here
	scope.Add(1)
	s.mu.Unlock()

	defer scope.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.State() != StateListening {
				return nil
			}
			s.logger.Error().Err(err).Msg("failed to accept connection")
			continue
		}
		if maxClients > 0 && clients.len() >= maxClients {
			atomic.AddUint64(&s.refused, 1)
			s.logger.Warn().
				Str("peer", formatAddress(conn.RemoteAddr())).
				Int("limit", maxClients).
				Msg("client limit reached, connection refused")
			conn.Close()
			continue
		}
		id := atomic.AddUint64(&s.nextID, 1)
		h := newHandler(id, conn, q, bufSize, s.logger)
		if !clients.add(id, h) {
			// registry is sealed, shutdown has started
			conn.Close()
			continue
		}
		atomic.AddUint64(&s.served, 1)
		s.logger.Info().
			Uint64("client", id).
			Str("peer", formatAddress(conn.RemoteAddr())).
			Msg("client connected")
		scope.Add(1)
		go func() {
			defer scope.Done()
			h.run()
			clients.delete(h.id)
			close(h.done)
		}()
	}
}

// Shutdown - stops accepting, closes and joins every registered handler,
// applies the stop policy to the queue and joins the consumer. Returns
// time spent, never more than a little over the given timeout. Repeated
// calls are no-ops.
func (s *Server) Shutdown(timeout time.Duration) time.Duration {
	s.mu.Lock()
	if s.state != StateListening && s.state != StateBound {
		s.mu.Unlock()
		return 0
	}
	s.state = StateShuttingDown
	listener := s.listener
	clients := s.clients
	q := s.queue
	scope := s.scope
	stopPolicy := s.stopPolicy
	s.mu.Unlock()

	from := time.Now()
	if listener != nil {
		listener.Close()
	}
	if clients != nil {
		clients.joinAll()
	}
	if q != nil {
		if stopPolicy == DiscardOnStop {
			q.Reset()
		}
		q.Close()
	}
	if scope != nil {
		scope.Cancel()
		if !scope.Wait(timeout) {
			s.logger.Warn().Msg("shutdown timed out waiting for background workers")
		}
	}

	s.mu.Lock()
	s.listener = nil
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info().Msg("server stopped")
	return time.Since(from)
}

// Restart - rebinds a stopped server to its port and re-enters the
// listening state with an empty registry and an empty queue. The caller
// runs AcceptLoop again after successful restart.
func (s *Server) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return ErrInvalidState
	}
	s.state = StateRestarting
	if err := s.bind(); err != nil {
		s.state = StateStopped
		return err
	}
	if err := s.listen(); err != nil {
		s.listener.Close()
		s.listener = nil
		s.state = StateStopped
		return err
	}
	return nil
}

// State - returns current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr - returns the bound listener address or nil when there is none.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// CountActive - returns the number of currently served connections.
func (s *Server) CountActive() int {
	s.mu.Lock()
	clients := s.clients
	s.mu.Unlock()
	if clients == nil {
		return 0
	}
	return clients.len()
}

// CountRefused - returns the number of connections closed over the
// client limit since the server was created.
func (s *Server) CountRefused() uint64 {
	return atomic.LoadUint64(&s.refused)
}

// CountServed - returns the number of connections handed to handlers
// since the server was created.
func (s *Server) CountServed() uint64 {
	return atomic.LoadUint64(&s.served)
}

// Tail - returns a copy of up to n most recently reported lines.
func (s *Server) Tail(n int) []string {
	return s.recent.Last(n)
}
