// Package ws forwards event bridge deliveries to UI clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamos/tamos-client-go/internal/bridge"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	pingPeriod   = readTimeout / 2
	sendBuffer   = 256
)

// Event is the frame sent for every bridge delivery
type Event struct {
	Type    bridge.Channel `json:"type"`
	Payload any            `json:"payload"`
}

// Server accepts UI feed connections
type Server struct {
	bridge *bridge.Bridge
	log    *log.Logger

	upgrader websocket.Upgrader
	clients  atomic.Int64
	dropped  atomic.Uint64
}

func NewServer(b *bridge.Bridge, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		bridge: b,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local UI
		},
	}
}

// Clients returns the number of connected feed clients
func (s *Server) Clients() int64 { return s.clients.Load() }

// Dropped returns how many frames were dropped for slow clients
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, sendBuffer)
		unsubscribe := s.bridge.SubscribeAll(func(ch bridge.Channel, payload any) {
			b, err := json.Marshal(Event{Type: ch, Payload: payload})
			if err != nil {
				s.log.Printf("[ws] encode %s: %v", ch, err)
				return
			}
			select {
			case out <- b:
			default:
				// Publishers never wait on a slow client.
				s.dropped.Add(1)
			}
		})
		defer unsubscribe()

		s.clients.Add(1)
		defer s.clients.Add(-1)
		s.log.Printf("[ws] client connected: %s", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			ping := time.NewTicker(pingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
						writeErr <- err
						return
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// The feed is one-way; reads only detect the client going away.
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("[ws] client disconnected: %s", r.RemoteAddr)
	}
}
