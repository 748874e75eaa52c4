package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/VaynZXC/tanki/internal/trace"
)

// Inbound rate limiting per connection.
const (
	RateLimitMessages = 30
	RateLimitWindow   = time.Second
)

// request is the only inbound message shape observers may send.
type request struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// ThumbnailFunc produces a JPEG snapshot of the controlled desktop.
type ThumbnailFunc func() ([]byte, error)

// Server exposes the run feed over WebSocket plus a frame endpoint
// for a live desktop preview.
type Server struct {
	feed       *Feed
	thumbnail  ThumbnailFunc
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

func New(feed *Feed, thumbnail ThumbnailFunc) *Server {
	s := &Server{
		feed:       feed,
		thumbnail:  thumbnail,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
	go s.broadcast()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /frame", s.handleFrame)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("observer connected", "remote", r.RemoteAddr)

	// late joiners get the current state immediately
	if latest := s.feed.Latest(); latest.Type != "" {
		_ = wsjson.Write(ctx, conn, latest)
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, errorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}
		if req.Type == "snapshot" {
			_ = wsjson.Write(ctx, conn, s.feed.Latest())
		}
	}
}

func (s *Server) broadcast() {
	for evt := range s.feed.Events() {
		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn, e Event) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = wsjson.Write(ctx, c, e)
			}(conn, evt)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	if s.thumbnail == nil {
		http.Error(w, "no capture source", http.StatusServiceUnavailable)
		return
	}
	data, err := s.thumbnail()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}
