package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nrgkick-panel/internal/config"
	"nrgkick-panel/internal/proxy"
	"nrgkick-panel/internal/session"
)

//go:embed static/*
var staticFiles embed.FS

// Server hosts the browser panel, the /api proxy surface, the websocket
// push channel and the metrics endpoint.
type Server struct {
	config    *config.Config
	session   *session.Controller
	forwarder *proxy.Forwarder
	metrics   http.Handler
	logger    *logrus.Logger

	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewServer wires the HTTP surface. The session may be nil when no device
// address is configured; the proxy then runs in path-addressed mode only.
func NewServer(cfg *config.Config, sess *session.Controller, forwarder *proxy.Forwarder, metrics http.Handler, logger *logrus.Logger) *Server {
	s := &Server{
		config:    cfg,
		session:   sess,
		forwarder: forwarder,
		metrics:   metrics,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", s.forwarder)
	mux.Handle("/api", s.forwarder)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/alert/dismiss", s.handleDismissAlert)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.HandleFunc("/", s.handleStatic)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	mux := s.routes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	s.logger.Infof("Starting panel server on %s", addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down panel server...")
		s.server.Close()
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop() {
	if s.server != nil {
		s.logger.Info("Stopping panel server")
		s.server.Close()
	}
}

// Broadcast pushes a session snapshot to every connected websocket client.
// Registered as a session listener.
func (s *Server) Broadcast(snap session.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Errorf("Marshal snapshot: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- payload:
		default:
			// Slow client, skip this update rather than block the session.
			s.logger.Debugf("Dropping snapshot for slow client %s", conn.RemoteAddr())
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	ch := make(chan []byte, 8)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	s.logger.Debugf("Panel client connected: %s", conn.RemoteAddr())

	if s.session != nil {
		if payload, err := json.Marshal(s.session.Snapshot()); err == nil {
			select {
			case ch <- payload:
			default:
			}
		}
	}

	go func() {
		for payload := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debugf("Write to %s failed: %v", conn.RemoteAddr(), err)
				conn.Close()
				return
			}
		}
	}()

	// Reader loop only detects close; the panel never sends data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	close(ch)
	conn.Close()
	s.logger.Debugf("Panel client disconnected: %s", conn.RemoteAddr())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.session == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "NRGKick device address not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.session != nil {
		s.session.ClearAlert()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		payload, err := staticFiles.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "panel not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(payload)
		return
	}
	http.FileServer(http.FS(staticFiles)).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
