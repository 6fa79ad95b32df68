package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"cards-chaos/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
	wsSendBuffer     = 256
	hubEventBuffer   = 1024
	publishTimeout   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type wsInbound struct {
	Type         string          `json:"type"`
	Action       string          `json:"action"`
	TargetUserID string          `json:"target_user_id"`
	Payload      json.RawMessage `json:"payload"`
	Enabled      *bool           `json:"enabled"`
	Video        *bool           `json:"video"`
	Audio        *bool           `json:"audio"`
}

func (m wsInbound) kind() string {
	if m.Action != "" {
		return m.Action
	}
	return m.Type
}

type wsClient struct {
	topic  string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// wsHub groups connections by topic ("room:ABCD", "video:ABCD"). Events are
// dispatched one at a time from a single goroutine so every subscriber sees
// them in publish order.
type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*wsClient]struct{}
	events chan hubEvent
}

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[string]map[*wsClient]struct{}),
		events: make(chan hubEvent, hubEventBuffer),
	}
}

func (h *wsHub) Add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[client.topic]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[client.topic] = group
	}
	group[client] = struct{}{}
}

func (h *wsHub) Remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[client.topic]
	if group == nil {
		return
	}
	if _, ok := group[client]; !ok {
		return
	}
	delete(group, client)
	close(client.send)
	if len(group) == 0 {
		delete(h.groups, client.topic)
	}
}

func (h *wsHub) clients(topic string) []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[topic]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	return clients
}

func (h *wsHub) hasUser(topic, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.groups[topic] {
		if client.userID == userID {
			return true
		}
	}
	return false
}

// deliver queues data without blocking. A client whose buffer is full misses
// the message.
func (h *wsHub) deliver(client *wsClient, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[client.topic][client]; !ok {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		log.Printf("ws send dropped topic=%s user_id=%s reason=buffer_full", client.topic, client.userID)
		return false
	}
}

func (h *wsHub) send(client *wsClient, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws encode failed topic=%s error=%v", client.topic, err)
		return false
	}
	return h.deliver(client, data)
}

func (h *wsHub) enqueue(event hubEvent) {
	select {
	case h.events <- event:
	default:
		log.Printf("hub event dropped topic=%s action=%s reason=queue_full", event.Topic, event.Action)
	}
}

func (h *wsHub) run(dispatch func(hubEvent)) {
	for event := range h.events {
		dispatch(event)
	}
}

func roomTopic(code string) string {
	return "room:" + code
}

func videoTopic(code string) string {
	return "video:" + code
}

func (s *Server) publish(event hubEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.relay.Publish(ctx, event); err != nil {
		log.Printf("publish failed topic=%s action=%s error=%v", event.Topic, event.Action, err)
		s.hub.enqueue(event)
	}
}

func (s *Server) publishRoom(code, action string) {
	s.publish(hubEvent{Topic: roomTopic(code), Action: action})
}

func (s *Server) dispatch(event hubEvent) {
	clients := s.hub.clients(event.Topic)
	if len(clients) == 0 {
		return
	}
	kind, code, _ := strings.Cut(event.Topic, ":")
	switch kind {
	case "room":
		s.dispatchRoom(code, event, clients)
	case "video":
		s.dispatchVideo(event, clients)
	}
}

// dispatchRoom loads the room once and renders a separate view per viewer so
// nobody receives another player's hand.
func (s *Server) dispatchRoom(code string, event hubEvent, clients []*wsClient) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		log.Printf("broadcast load failed room=%s action=%s error=%v", code, event.Action, err)
		return
	}
	for _, client := range clients {
		s.hub.send(client, wsMessage{
			Type:   "room_state",
			Action: event.Action,
			Data:   game.ViewFor(room, client.userID),
		})
	}
}

func (s *Server) dispatchVideo(event hubEvent, clients []*wsClient) {
	delivered := 0
	for _, client := range clients {
		if event.Target != "" && client.userID != event.Target {
			continue
		}
		if event.Exclude != "" && client.userID == event.Exclude {
			continue
		}
		if s.hub.deliver(client, event.Payload) {
			delivered++
		}
	}
	if event.SignalID != "" && delivered > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.signals.MarkDelivered(ctx, event.SignalID); err != nil {
			log.Printf("signal mark delivered failed signal_id=%s error=%v", event.SignalID, err)
		}
	}
}

func (s *Server) handleRoomWebsocket(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := viewerID(c)
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		writeFailure(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed room=%s error=%v", code, err)
		return
	}
	client := &wsClient{topic: roomTopic(code), userID: userID, conn: conn, send: make(chan []byte, wsSendBuffer)}
	s.hub.Add(client)
	log.Printf("ws connected room=%s user_id=%s remote=%s", code, userID, c.Request.RemoteAddr)

	changed := false
	if room.Player(userID) != nil {
		if updated, flipped, err := s.setOnline(ctx, code, userID, true); err == nil {
			room, changed = updated, flipped
		}
	}
	s.hub.send(client, wsMessage{Type: "room_state", Action: "sync", Data: game.ViewFor(room, userID)})
	if changed {
		s.publishRoom(code, "player_online")
	}

	go s.writePump(client)
	go s.readRoomPump(client, code)
}

func (s *Server) readRoomPump(client *wsClient, code string) {
	defer s.closeRoomClient(client, code)
	configureReader(client.conn)
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws disconnected room=%s user_id=%s error=%v", code, client.userID, err)
			}
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.kind() {
		case "ping":
			s.hub.send(client, wsMessage{Type: "pong"})
		case "heartbeat":
			if client.userID == "" {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			_, changed, err := s.setOnline(ctx, code, client.userID, true)
			cancel()
			if err == nil && changed {
				s.publishRoom(code, "player_online")
			}
		}
	}
}

// closeRoomClient marks the player offline once their last connection to
// the room is gone.
func (s *Server) closeRoomClient(client *wsClient, code string) {
	s.hub.Remove(client)
	if client.userID == "" || s.hub.hasUser(client.topic, client.userID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_, changed, err := s.setOnline(ctx, code, client.userID, false)
	if err != nil {
		return
	}
	if changed {
		log.Printf("player offline room=%s user_id=%s", code, client.userID)
		s.publishRoom(code, "player_left")
	}
}

func configureReader(conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
}

func (s *Server) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
