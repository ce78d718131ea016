package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chunkchain/internal/corpus"
)

// MessageType names a WebSocket frame.
type MessageType string

const (
	TypeGenerate MessageType = "generate" // client -> server
	TypeAnalyse  MessageType = "analyse"  // client -> server
	TypeResult   MessageType = "result"   // server -> client: generation result
	TypeAnalysis MessageType = "analysis" // server -> client: analyse summary
	TypeError    MessageType = "error"    // server -> client
)

// BaseMessage carries the fields shared by every frame.
type BaseMessage struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// ClientMessage is a request frame. An empty Type means generate.
type ClientMessage struct {
	BaseMessage
	SampleID     string `json:"sample_id"`
	ChunkSize    string `json:"chunk_size,omitempty"`
	OutputLength int    `json:"output_length,omitempty"`
}

// ResultMessage answers a generate frame.
type ResultMessage struct {
	BaseMessage
	Result *corpus.Result `json:"result"`
}

// AnalysisMessage answers an analyse frame.
type AnalysisMessage struct {
	BaseMessage
	Analysis *corpus.Analysis `json:"analysis"`
}

// ErrorMessage reports a failed frame.
type ErrorMessage struct {
	BaseMessage
	Error string `json:"error"`
	Code  string `json:"code"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 16),
	}
	s.logger.Debug("client connected", "client", c.id)

	go s.writeLoop(c)
	go s.readLoop(s.ctx, c)
}

// readLoop handles frames in order until the client disconnects or ctx ends.
func (s *Server) readLoop(ctx context.Context, c *client) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		close(c.send)
		s.logger.Debug("client disconnected", "client", c.id)
	}()

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				s.logger.Debug("websocket read error", "client", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, &ErrorMessage{
				BaseMessage: base(TypeError, ""),
				Error:       fmt.Sprintf("invalid message: %v", err),
				Code:        "invalid_request",
			})
			continue
		}
		s.reply(c, s.dispatch(ctx, &msg))
	}
}

func (s *Server) dispatch(ctx context.Context, msg *ClientMessage) any {
	switch msg.Type {
	case TypeGenerate, "":
		result, err := s.service.Generate(ctx, corpus.Request{
			SampleID:     msg.SampleID,
			ChunkSize:    msg.ChunkSize,
			OutputLength: msg.OutputLength,
		})
		if err != nil {
			return s.errorMessage(msg.ID, err)
		}
		return &ResultMessage{BaseMessage: base(TypeResult, msg.ID), Result: result}

	case TypeAnalyse:
		analysis, err := s.service.AnalyseID(ctx, msg.SampleID)
		if err != nil {
			return s.errorMessage(msg.ID, err)
		}
		return &AnalysisMessage{BaseMessage: base(TypeAnalysis, msg.ID), Analysis: analysis}

	default:
		return &ErrorMessage{
			BaseMessage: base(TypeError, msg.ID),
			Error:       fmt.Sprintf("unknown message type %q", msg.Type),
			Code:        "invalid_request",
		}
	}
}

func (s *Server) errorMessage(id string, err error) *ErrorMessage {
	status, code := statusFor(err)
	text := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("websocket request failed", "id", id, "error", err)
		text = "internal error"
	}
	return &ErrorMessage{BaseMessage: base(TypeError, id), Error: text, Code: code}
}

func (s *Server) reply(c *client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal reply", "client", c.id, "error", err)
		return
	}
	c.send <- data
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("websocket write error", "client", c.id, "error", err)
			// Drain so the reader never blocks on a dead connection.
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func base(t MessageType, id string) BaseMessage {
	return BaseMessage{Type: t, ID: id, Timestamp: time.Now()}
}
