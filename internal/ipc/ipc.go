// Package ipc implements the local stream-socket control surface (§4.8):
// a listener bound to a configured path, one reader/writer goroutine
// pair per connection, and a broadcast path that fans collector events
// out to every connected client as JSON-RPC notifications.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
	"github.com/tomasbasham/chrome-daemon/internal/rpc"
)

// notificationBuffer bounds each client's outbound queue; a client that
// cannot keep up loses notifications rather than stalling the publisher
// (§5 "Shared-resource policy").
const notificationBuffer = 64

// Server is the IPC listener: it binds the control socket, accepts
// client connections, and dispatches every line they send through the
// shared *rpc.Dispatcher.
type Server struct {
	path       string
	dispatcher *rpc.Dispatcher
	pool       *pool.Pool

	listener net.Listener

	mu      sync.Mutex
	clients map[string]chan []byte
	pumps   map[string]chan struct{} // session id -> stop signal for its event pump

	done chan struct{}
}

// New builds a Server bound to socketPath, dispatching through d and
// watching p for sessions whose events should be broadcast.
func New(socketPath string, d *rpc.Dispatcher, p *pool.Pool) *Server {
	return &Server{
		path:       socketPath,
		dispatcher: d,
		pool:       p,
		clients:    make(map[string]chan []byte),
		pumps:      make(map[string]chan struct{}),
		done:       make(chan struct{}),
	}
}

// ListenAndServe removes any stale socket file, binds the listener, and
// runs the accept loop plus the session event pump until ctx is
// cancelled. It returns nil when the accept loop ends because ctx was
// cancelled (the listener's "use of closed network connection" is treated
// as a clean shutdown), and the error otherwise.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.listener = ln

	go s.pumpSessions(ctx)

	go func() {
		<-ctx.Done()
		close(s.done)
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		go s.serveConn(ctx, conn)
	}
}

// Close shuts down the listener and removes the socket file.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	_ = os.Remove(s.path)
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	clientID := uuid.NewString()
	writer := make(chan []byte, notificationBuffer)

	s.mu.Lock()
	s.clients[clientID] = writer
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, clientID)
		s.mu.Unlock()
		conn.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.writeLoop(conn, writer)
	}()
	go func() {
		defer wg.Done()
		s.readLoop(ctx, conn, clientID, writer)
	}()
	wg.Wait()
}

// readLoop decodes one JSON-RPC request per line and hands it to the
// dispatcher; the response is queued on writer so it interleaves
// correctly with any notification pushed to this client in the
// meantime.
func (s *Server) readLoop(ctx context.Context, conn net.Conn, clientID string, writer chan []byte) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpc.Request
		resp := func() rpc.Response {
			if err := json.Unmarshal(line, &req); err != nil {
				return rpc.ParseErrorResponse(err)
			}
			return s.dispatcher.Handle(ctx, clientID, req)
		}()

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("ipc: failed to marshal response", "error", err)
			continue
		}
		select {
		case writer <- append(data, '\n'):
		default:
			slog.Warn("ipc: dropping response, client writer full", "client", clientID)
		}
	}
	close(writer)
}

// writeLoop drains writer until it's closed (by readLoop on disconnect)
// or the connection breaks.
func (s *Server) writeLoop(conn net.Conn, writer chan []byte) {
	for data := range writer {
		if _, err := conn.Write(data); err != nil {
			return
		}
	}
}

// Broadcast queues a notification for delivery to every connected
// client. Slow clients drop the notification rather than blocking the
// publisher.
func (s *Server) Broadcast(n rpc.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	line := append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.clients {
		select {
		case w <- line:
		default:
			slog.Warn("ipc: dropping notification, client writer full", "client", id)
		}
	}
}

// SendTo queues a notification for exactly one client, identified by
// the id Handle was called with.
func (s *Server) SendTo(clientID string, n rpc.Notification) bool {
	data, err := json.Marshal(n)
	if err != nil {
		return false
	}
	line := append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.clients[clientID]
	if !ok {
		return false
	}
	select {
	case w <- line:
		return true
	default:
		return false
	}
}

// pumpSessions periodically scans the pool for sessions without an
// active forwarder and starts one; forwarders stop themselves once
// their session is no longer live.
func (s *Server) pumpSessions(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for _, stop := range s.pumps {
				close(stop)
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.reconcilePumps()
		}
	}
}

func (s *Server) reconcilePumps() {
	live := map[string]bool{}
	for _, info := range s.pool.List() {
		live[info.ID] = true

		s.mu.Lock()
		_, tracked := s.pumps[info.ID]
		s.mu.Unlock()
		if tracked {
			continue
		}

		sess, ok := s.pool.Get(info.ID)
		if !ok {
			continue
		}
		stop := make(chan struct{})
		s.mu.Lock()
		s.pumps[info.ID] = stop
		s.mu.Unlock()

		go func(id string) {
			for {
				select {
				case ev, ok := <-sess.Events():
					if !ok {
						return
					}
					payload, _ := json.Marshal(map[string]any{
						"session_id": id,
						"collection": ev.Collection,
						"type":       ev.Type,
						"data":       ev.Data,
					})
					s.Broadcast(rpc.Notification{JSONRPC: "2.0", Method: "event", Params: payload})
				case <-stop:
					return
				}
			}
		}(info.ID)
	}

	s.mu.Lock()
	for id, stop := range s.pumps {
		if !live[id] {
			close(stop)
			delete(s.pumps, id)
		}
	}
	s.mu.Unlock()
}

// IsDaemonRunning probes whether a daemon is listening at path: the
// socket file must exist and a connection must succeed (§4.8).
func IsDaemonRunning(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
