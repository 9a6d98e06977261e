// Package stream exposes turn events over a local WebSocket endpoint so
// dashboards and editor plugins can subscribe without tailing the event file.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lllll081926i/Aitify/internal/notify"
)

// replayDepth is how many recent events a new subscriber receives on connect.
const replayDepth = 16

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// trySend queues msg without blocking. Returns false when the client is
// closed or its buffer is full. The mutex keeps the send ordered against
// close, since broadcasts run on independent dispatch goroutines.
func (c *client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Server serves /ws on a loopback address and broadcasts events to all
// connected clients. Slow clients are disconnected rather than blocking
// the dispatch path.
type Server struct {
	addr string

	mu      sync.RWMutex
	clients map[*client]bool
	recent  [][]byte

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a stream server bound to addr (host:port).
func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		clients: make(map[*client]bool),
	}
}

// Addr returns the actual listen address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start begins listening and serving in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("stream server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: checkLocalOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream upgrade error: %v", err)
		return
	}

	c := newClient(conn)

	s.mu.Lock()
	s.clients[c] = true
	replay := make([][]byte, len(s.recent))
	copy(replay, s.recent)
	s.mu.Unlock()

	for _, data := range replay {
		c.trySend(data)
	}

	go func() {
		defer s.removeClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
}

// Broadcast sends an event to every connected client and records it in the
// replay buffer for future subscribers.
func (s *Server) Broadcast(event *notify.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.recent = append(s.recent, data)
	if len(s.recent) > replayDepth {
		s.recent = s.recent[len(s.recent)-replayDepth:]
	}
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if !c.trySend(data) {
			// Client can't keep up (or is already closed), disconnect it
			s.removeClient(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close stops the server and disconnects all clients.
func (s *Server) Close() error {
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]bool)
	s.mu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// checkLocalOrigin accepts requests with no Origin header (non-browser
// clients) and browser requests from localhost.
func checkLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// Notifier wraps a Server to implement the notify.Notifier interface.
type Notifier struct {
	server *Server
}

// NewNotifier creates a notifier that broadcasts to stream subscribers.
func NewNotifier(server *Server) *Notifier {
	return &Notifier{server: server}
}

// Name returns the notifier type.
func (n *Notifier) Name() string {
	return "stream"
}

// Send broadcasts a notification to all connected clients.
func (n *Notifier) Send(ctx context.Context, note *notify.Notification) error {
	n.server.Broadcast(notify.NewEventFromNotification(note))
	return nil
}

// Close closes the underlying server.
func (n *Notifier) Close() error {
	return n.server.Close()
}

// Server returns the underlying stream server.
func (n *Notifier) Server() *Server {
	return n.server
}
