package server

import (
	"context"
	"encoding/json"
	"log"

	"cards-chaos/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	errInvalidSignalType = &game.RuleError{Code: "validation", Message: "Invalid signal type"}
	errSignalToSelf      = &game.RuleError{Code: "validation", Message: "Cannot signal yourself"}
)

func (s *Server) publishVideo(code string, message wsMessage, target, exclude, signalID string) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("video encode failed room=%s type=%s error=%v", code, message.Type, err)
		return
	}
	s.publish(hubEvent{
		Topic:    videoTopic(code),
		Action:   message.Type,
		Target:   target,
		Exclude:  exclude,
		SignalID: signalID,
		Payload:  data,
	})
}

// requireMember checks that every user holds a seat in the room. Only
// players may take part in a room's call or signal each other.
func (s *Server) requireMember(ctx context.Context, code string, userIDs ...string) error {
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return err
	}
	for _, userID := range userIDs {
		if room.Player(userID) == nil {
			return game.ErrPlayerNotFound
		}
	}
	return nil
}

func (s *Server) joinVideo(ctx context.Context, code, userID string, video, audio bool) (Participant, []Participant, error) {
	if err := s.requireMember(ctx, code, userID); err != nil {
		return Participant{}, nil, err
	}
	participant, err := s.video.Join(ctx, code, userID, video, audio)
	if err != nil {
		return Participant{}, nil, err
	}
	participants, err := s.video.List(ctx, code)
	if err != nil {
		return Participant{}, nil, err
	}
	log.Printf("video joined room=%s user_id=%s", code, userID)
	s.publishVideo(code, wsMessage{Type: "participant_joined", Data: participant}, "", userID, "")
	return participant, participants, nil
}

// leaveVideo disconnects the participant and discards the signals they
// sent, which no peer can use once they are gone.
func (s *Server) leaveVideo(ctx context.Context, code, userID string) error {
	if err := s.video.Leave(ctx, code, userID); err != nil {
		return err
	}
	if _, err := s.signals.DeleteFrom(ctx, code, userID); err != nil {
		log.Printf("video signal cleanup failed room=%s user_id=%s error=%v", code, userID, err)
	}
	log.Printf("video left room=%s user_id=%s", code, userID)
	s.publishVideo(code, wsMessage{Type: "participant_left", Data: gin.H{"user_id": userID}}, "", userID, "")
	return nil
}

func (s *Server) updateMedia(ctx context.Context, code, userID string, update MediaUpdate) (Participant, error) {
	if err := s.requireMember(ctx, code, userID); err != nil {
		return Participant{}, err
	}
	participant, err := s.video.SetMedia(ctx, code, userID, update)
	if err != nil {
		return Participant{}, err
	}
	if update.Video != nil || update.Audio != nil {
		s.publishVideo(code, wsMessage{Type: "media_state_changed", Data: participant}, "", userID, "")
	}
	if update.Screen != nil {
		s.publishVideo(code, wsMessage{Type: "screen_share_changed", Data: participant}, "", userID, "")
	}
	return participant, nil
}

// sendSignal stores the signal for a later drain and relays it live. A live
// delivery marks it delivered, and a drain returns whatever was missed.
func (s *Server) sendSignal(ctx context.Context, code, from, to, signalType string, payload json.RawMessage) (Signal, error) {
	if !isSignalType(signalType) {
		return Signal{}, errInvalidSignalType
	}
	if to == from {
		return Signal{}, errSignalToSelf
	}
	if err := s.requireMember(ctx, code, from, to); err != nil {
		return Signal{}, err
	}
	signal, err := s.signals.Store(ctx, code, from, to, signalType, payload)
	if err != nil {
		return Signal{}, err
	}
	s.publishVideo(code, wsMessage{Type: "signal", Data: signal}, to, "", signal.ID)
	return signal, nil
}

func (s *Server) handleVideoWebsocket(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.requireMember(ctx, code, userID); err != nil {
		writeFailure(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("video ws upgrade failed room=%s error=%v", code, err)
		return
	}
	client := &wsClient{topic: videoTopic(code), userID: userID, conn: conn, send: make(chan []byte, wsSendBuffer)}
	s.hub.Add(client)
	log.Printf("video ws connected room=%s user_id=%s remote=%s", code, userID, c.Request.RemoteAddr)

	if participants, err := s.video.List(ctx, code); err == nil {
		s.hub.send(client, wsMessage{Type: "participants_list", Data: participants})
	}
	pending, err := s.signals.Drain(ctx, code, userID)
	if err != nil {
		log.Printf("video drain failed room=%s user_id=%s error=%v", code, userID, err)
	}
	for _, signal := range pending {
		s.hub.send(client, wsMessage{Type: "signal", Data: signal})
	}

	go s.writePump(client)
	go s.readVideoPump(client, code)
}

func (s *Server) readVideoPump(client *wsClient, code string) {
	defer s.closeVideoClient(client, code)
	configureReader(client.conn)
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("video ws disconnected room=%s user_id=%s error=%v", code, client.userID, err)
			}
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.send(client, wsMessage{Type: "error", Data: gin.H{"error": "invalid message"}})
			continue
		}
		if err := s.handleVideoMessage(client, code, msg); err != nil {
			s.hub.send(client, wsMessage{Type: "error", Action: msg.kind(), Data: errorBody(err)})
		}
	}
}

func (s *Server) handleVideoMessage(client *wsClient, code string, msg wsInbound) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	userID := client.userID
	switch action := msg.kind(); action {
	case "join":
		_, participants, err := s.joinVideo(ctx, code, userID, boolOr(msg.Video, true), boolOr(msg.Audio, true))
		if err != nil {
			return err
		}
		s.hub.send(client, wsMessage{Type: "participants_list", Data: participants})
	case "leave":
		return s.leaveVideo(ctx, code, userID)
	case signalOffer, signalAnswer, signalICECandidate, signalRenegotiate:
		_, err := s.sendSignal(ctx, code, userID, msg.TargetUserID, action, msg.Payload)
		return err
	case "toggle_video":
		_, err := s.updateMedia(ctx, code, userID, MediaUpdate{Video: msg.Enabled})
		return err
	case "toggle_audio":
		_, err := s.updateMedia(ctx, code, userID, MediaUpdate{Audio: msg.Enabled})
		return err
	case "toggle_screen_share":
		_, err := s.updateMedia(ctx, code, userID, MediaUpdate{Screen: msg.Enabled})
		return err
	case "heartbeat":
		return s.video.Heartbeat(ctx, code, userID)
	case "ping":
		s.hub.send(client, wsMessage{Type: "pong"})
	}
	return nil
}

// closeVideoClient leaves the call when the socket closes, unless the user
// still has another video socket open in this room.
func (s *Server) closeVideoClient(client *wsClient, code string) {
	s.hub.Remove(client)
	if s.hub.hasUser(client.topic, client.userID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.leaveVideo(ctx, code, client.userID); err != nil && !isNotFound(err) {
		log.Printf("video leave on close failed room=%s user_id=%s error=%v", code, client.userID, err)
	}
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
