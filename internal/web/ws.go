package web

import (
	"encoding/json"
	"net/http"
	"time"

	"diabetes-risk/internal/features"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait = 5 * time.Second
	wsMaxBytes  = 4 << 10
)

// ValidateMessage is what the browser sends on every keystroke.
type ValidateMessage struct {
	Fields []string `json:"fields"`
}

// ValidateReply reports the first problem with the current form values.
type ValidateReply struct {
	Valid   bool   `json:"valid"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// checkFields runs the same rules as a submission, without predicting.
func checkFields(fields []string) ValidateReply {
	_, err := features.Validate(fields)
	if err == nil {
		return ValidateReply{Valid: true}
	}
	reply := ValidateReply{Message: err.Error()}
	if ve, ok := features.AsValidationError(err); ok {
		reply.Kind = string(ve.Kind)
		reply.Field = ve.Field
	}
	return reply
}

// handleValidateSocket answers each ValidateMessage with a ValidateReply
// until the client goes away.
func (s *Server) handleValidateSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		s.countError()
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxBytes)

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()
	if s.metrics != nil {
		s.metrics.WSConnections().Add(1)
	}

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		if s.metrics != nil {
			s.metrics.WSConnections().Add(-1)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("WebSocket client disconnected")
			}
			return
		}

		var msg ValidateMessage
		reply := ValidateReply{Kind: "bad_request", Message: "invalid message"}
		if json.Unmarshal(data, &msg) == nil {
			reply = checkFields(msg.Fields)
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Error().Err(err).Msg("Failed to send validation reply")
			return
		}
	}
}
