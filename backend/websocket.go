// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ttbt-io/pitchdeck/backend/pdfexport"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

type directMessage struct {
	client *wsClient
	msg    Message
}

// Message is sent to websocket clients.
type Message struct {
	Type    string           `json:"type"`
	Event   *pdfexport.Event `json:"event,omitempty"`
	Variant string           `json:"variant,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Hub fans export progress out to every connected deck page. A single run
// loop owns the client set.
type Hub struct {
	clients    map[*wsClient]bool
	broadcasts chan Message
	register   chan *wsClient
	unregister chan *wsClient
	direct     chan directMessage
	count      chan chan int

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewHub starts a hub. Close stops it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[*wsClient]bool),
		broadcasts: make(chan Message, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		direct:     make(chan directMessage),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case msg := <-h.broadcasts:
			h.broadcast(msg)
		case dm := <-h.direct:
			if h.clients[dm.client] {
				select {
				case dm.client.send <- dm.msg:
				default:
				}
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

func (h *Hub) broadcast(msg Message) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast queues msg for every client. It drops the message when the hub
// is closed or backed up.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcasts <- msg:
	default:
		h.logger.Warn("Hub backlog full, dropping message", zap.String("type", msg.Type))
	}
}

// PublishExport is a pdfexport observer.
func (h *Hub) PublishExport(ev pdfexport.Event) {
	h.Broadcast(Message{Type: MsgTypeExport, Event: &ev})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close disconnects every client and stops the run loop.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message
}

// readPump keeps the read deadline moving and answers PING messages.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case MsgTypePing:
			c.sendJSON(Message{Type: MsgTypePong})
		default:
			c.sendJSON(Message{Type: MsgTypeError, Error: "Unknown message type"})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON replies to this client only. The hub owns c.send, so the reply
// goes through its run loop.
func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.hub.direct <- directMessage{client: c, msg: msg}:
	case <-c.hub.done:
	}
}

// ServeWS upgrades the request and registers the connection with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	client := &wsClient{hub: h, conn: conn, send: make(chan Message, 32)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
