package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the client.
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// ResultHub pushes analysis results to dashboard clients over websockets.
// Each result is marshalled once and fanned out; a client that cannot keep
// up misses results, mirroring the engine's own drop-on-overflow stance.
type ResultHub struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	bcast    chan []byte
}

func NewResultHub() *ResultHub {
	h := &ResultHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:    make(map[chan []byte]bool),
		addc:  make(chan chan []byte),
		delc:  make(chan chan []byte),
		bcast: make(chan []byte),
	}
	go func() {
		for {
			select {
			case c := <-h.addc:
				h.cs[c] = true
			case c := <-h.delc:
				delete(h.cs, c)
			case b := <-h.bcast:
				for c := range h.cs {
					select {
					case c <- b:
					default:
						// Client writer busy; it misses this result.
					}
				}
			}
		}
	}()
	return h
}

// Broadcast sends v as JSON to every connected client.
func (h *ResultHub) Broadcast(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("Failed to marshal result for broadcast: %v", err)
		return
	}
	h.bcast <- b
}

func (h *ResultHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for result stream: %v", err)
		}
		return
	}
	go h.serve(ws)
}

func (h *ResultHub) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to result socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from result socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	c := make(chan []byte, 1)
	h.addc <- c
	defer func() { h.delc <- c }()

	// Even though we don't care about incoming messages, we need to read
	// from the socket in order to process control messages.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case b := <-c:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
