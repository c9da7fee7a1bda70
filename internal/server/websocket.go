package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"tugmath/internal/game"
	"tugmath/internal/session"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	DisplayID string `json:"displayId,omitempty"`
}

type actionPayload struct {
	Action game.Action `json:"action"`
}

type statePayload struct {
	State       any                 `json:"state"`
	SessionInfo session.Info        `json:"sessionInfo"`
	Results     []game.PlayerResult `json:"results,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func stateOf(sess *session.Session) statePayload {
	return statePayload{
		State:       sess.View(),
		SessionInfo: sess.Info(),
		Results:     sess.Results(),
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.logger.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, "first message must be a join")
		return
	}
	var join joinPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &join); err != nil {
			sendWSError(ctx, conn, "invalid join payload")
			return
		}
	}

	display, err := sess.Attach(join.DisplayID)
	if err != nil {
		sendWSError(ctx, conn, err.Error())
		return
	}
	logger := s.logger.With(zap.String("session", code), zap.String("display", display.ID))
	logger.Debug("display connected")

	// Writer goroutine: send messages from the channel to the websocket.
	// The channel closes when the display is replaced or the session ends.
	go func() {
		for msg := range display.Send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusGoingAway, "display closed")
	}()

	// Notify all displays about the roster change
	s.broadcastState(sess)

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(sess, display, "error", errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(ctx, sess, display, msg)
	}

	sess.Detach(display)
	s.broadcastState(sess)
	logger.Debug("display disconnected")
}

func (s *Server) handleMessage(ctx context.Context, sess *session.Session, display *session.Display, msg WSMessage) {
	switch msg.Type {
	case "action":
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil || ap.Action.Type == "" {
			sendWSMsg(sess, display, "error", errorPayload{Message: "invalid action payload"})
			return
		}
		// Successful actions are broadcast from the session loop.
		if err := sess.Dispatch(ctx, ap.Action); err != nil {
			sendWSMsg(sess, display, "error", errorPayload{Message: err.Error()})
		}

	default:
		sendWSMsg(sess, display, "error", errorPayload{Message: "unknown message type: " + msg.Type})
	}
}

func (s *Server) broadcastState(sess *session.Session) {
	msg, err := encodeWS("state", stateOf(sess))
	if err != nil {
		s.logger.Error("encode state", zap.String("session", sess.Code), zap.Error(err))
		return
	}
	sess.Broadcast(msg)
}

func encodeWS(msgType string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: p})
}

func sendWSMsg(sess *session.Session, display *session.Display, msgType string, payload any) {
	msg, err := encodeWS(msgType, payload)
	if err != nil {
		return
	}
	sess.Send(display, msg)
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	msg, _ := encodeWS("error", errorPayload{Message: message})
	conn.Write(ctx, websocket.MessageText, msg)
}
