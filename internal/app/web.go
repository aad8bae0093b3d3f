// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is one frame pushed to websocket clients.
type WSMessage struct {
	Type    string `json:"type"` // pose, gyro, tap, light, tof, status, ack, error
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// webState caches the latest telemetry and fans updates out to websocket
// clients.
type webState struct {
	mu     sync.RWMutex
	latest map[string]any
	subs   map[chan []byte]struct{}
}

func newWebState() *webState {
	return &webState{latest: map[string]any{}, subs: map[chan []byte]struct{}{}}
}

func (s *webState) update(kind string, v any) {
	msg, err := json.Marshal(WSMessage{Type: kind, Data: v})
	if err != nil {
		log.Printf("web: json marshal (%s): %v", kind, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind != "tap" {
		s.latest[kind] = v
	}
	for ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// slow client, drop the update
		}
	}
}

func (s *webState) get(kind string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.latest[kind]
	return v, ok
}

func (s *webState) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *webState) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// serveLatest answers with the cached value of kind, or 503 before the
// first message arrives.
func (s *webState) serveLatest(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := s.get(kind)
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	}
}

// handleWS streams every update to the client and forwards the commands it
// sends to the robot.
func (s *webState) handleWS(send func(telemetry.Command) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		out := s.subscribe()
		defer s.unsubscribe(out)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var cmd telemetry.Command
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				reply := WSMessage{Type: "ack", Message: cmd.Action}
				if err := send(cmd); err != nil {
					reply = WSMessage{Type: "error", Message: err.Error()}
				}
				b, _ := json.Marshal(reply)
				select {
				case out <- b:
				default:
				}
			}
		}()

		for {
			select {
			case msg := <-out:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Printf("web: websocket write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}
}

func newWebMux(s *webState, send func(telemetry.Command) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", s.serveLatest("pose"))
	mux.HandleFunc("/api/gyro", s.serveLatest("gyro"))
	mux.HandleFunc("/api/light", s.serveLatest("light"))
	mux.HandleFunc("/api/tof", s.serveLatest("tof"))
	mux.HandleFunc("/api/status", s.serveLatest("status"))
	mux.HandleFunc("/ws", s.handleWS(send))
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb serves the latest telemetry over HTTP and a websocket stream.
func RunWeb() error {
	cfg := config.Get()
	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	t := telemetry.TopicsFromConfig(cfg)
	state := newWebState()
	subs := []error{
		telemetry.Subscribe(client, t.Pose, func(p orientation.Pose) { state.update("pose", p) }),
		telemetry.Subscribe(client, t.Gyro, func(g mcu.Vec3) { state.update("gyro", g) }),
		telemetry.Subscribe(client, t.Tap, func(e telemetry.TapEvent) { state.update("tap", e) }),
		telemetry.Subscribe(client, t.Light, func(l telemetry.LightState) { state.update("light", l) }),
		telemetry.Subscribe(client, t.ToF, func(f telemetry.ToFState) { state.update("tof", f) }),
		telemetry.Subscribe(client, t.Status, func(st telemetry.Status) { state.update("status", st) }),
	}
	for _, err := range subs {
		if err != nil {
			return err
		}
	}

	pub := telemetry.NewPublisher(client, t)
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, newWebMux(state, pub.SendCommand))
}
