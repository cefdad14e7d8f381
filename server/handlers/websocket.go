package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/san-kum/pushup-cv/server/models"
	"github.com/san-kum/pushup-cv/server/processor"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	imageTimeout = 15 * time.Second
)

type WebSocketHandler struct {
	processor *processor.FrameProcessor
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// ClientMessage is a text frame sent by the browser. Data holds a
// FrameRequest for "frame" messages and a data URL string for "image".
type ClientMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsConn serializes writes; gorilla allows a single concurrent writer.
type wsConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.PingMessage, nil)
}

// connState is the session bound to one socket.
type connState struct {
	sessionID string
	clientIP  string
}

func NewWebSocketHandler(processor *processor.FrameProcessor, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		processor: processor,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	state := &connState{clientIP: c.ClientIP()}
	h.logger.Info("WebSocket client connected", zap.String("client_ip", state.clientIP))
	defer h.endSession(state)

	conn.SetReadLimit(10 * 1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	defer close(done)

	go h.pingRoutine(conn, ticker, done)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			h.handleBinaryFrame(conn, state, payload)
		case websocket.TextMessage:
			var message ClientMessage
			if err := json.Unmarshal(payload, &message); err != nil {
				h.sendError(conn, "Invalid message format")
				continue
			}
			h.handleMessage(conn, state, &message)
		}
	}
}

func (h *WebSocketHandler) handleMessage(conn *wsConn, state *connState, message *ClientMessage) {
	switch message.Type {
	case "start":
		h.startSession(conn, state)
	case "frame":
		h.handleFrame(conn, state, message)
	case "image":
		h.handleImage(conn, state, message)
	case "reset":
		h.resetSession(conn, state, false)
	case "stop":
		h.resetSession(conn, state, true)
	case "ping":
		h.sendMessage(conn, "pong", gin.H{"timestamp": time.Now().Unix()})
	default:
		h.logger.Warn("Unknown message type received", zap.String("type", message.Type))
		h.sendError(conn, "Unknown message type: "+message.Type)
	}
}

// startSession binds a fresh session to the connection, replacing any
// previous one.
func (h *WebSocketHandler) startSession(conn *wsConn, state *connState) {
	h.endSession(state)

	sess := h.processor.CreateSession(state.clientIP)
	state.sessionID = sess.ID
	h.sendMessage(conn, "status", models.FrameResult{
		SessionID: sess.ID,
		Status:    sess.Status(),
		Overlay:   []models.Annotation{},
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *WebSocketHandler) ensureSession(state *connState) string {
	if state.sessionID != "" {
		if _, err := h.processor.GetSession(state.sessionID); err == nil {
			return state.sessionID
		}
	}
	state.sessionID = h.processor.CreateSession(state.clientIP).ID
	return state.sessionID
}

func (h *WebSocketHandler) endSession(state *connState) {
	if state.sessionID == "" {
		return
	}
	if err := h.processor.EndSession(state.sessionID); err != nil {
		h.logger.Debug("Session already gone", zap.String("session_id", state.sessionID))
	}
	state.sessionID = ""
}

func (h *WebSocketHandler) handleFrame(conn *wsConn, state *connState, message *ClientMessage) {
	var request models.FrameRequest
	if len(message.Data) > 0 {
		if err := json.Unmarshal(message.Data, &request); err != nil {
			h.sendError(conn, "Invalid frame data")
			return
		}
	}
	if request.Timestamp == 0 {
		request.Timestamp = message.Timestamp
	}
	h.processFrame(conn, state, &request)
}

func (h *WebSocketHandler) handleBinaryFrame(conn *wsConn, state *connState, payload []byte) {
	var request models.FrameRequest
	if err := msgpack.Unmarshal(payload, &request); err != nil {
		h.logger.Warn("Failed to decode msgpack frame", zap.Error(err))
		h.sendError(conn, "Invalid frame data")
		return
	}
	h.processFrame(conn, state, &request)
}

func (h *WebSocketHandler) processFrame(conn *wsConn, state *connState, request *models.FrameRequest) {
	request.SessionID = h.ensureSession(state)

	result, err := h.processor.ProcessFrame(request)
	if err != nil {
		h.logger.Error("Frame processing failed", zap.Error(err))
		h.sendError(conn, "Frame processing failed")
		return
	}
	h.sendResult(conn, result)
}

func (h *WebSocketHandler) handleImage(conn *wsConn, state *connState, message *ClientMessage) {
	var dataURL string
	if err := json.Unmarshal(message.Data, &dataURL); err != nil {
		h.sendError(conn, "Invalid image data format")
		return
	}

	imageData, err := extractImageData(dataURL)
	if err != nil {
		h.logger.Error("Failed to extract image data", zap.Error(err))
		h.sendError(conn, "Invalid image data format")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), imageTimeout)
	defer cancel()

	result, err := h.processor.ProcessImage(ctx, &models.ImageRequest{
		ImageData: imageData,
		Timestamp: message.Timestamp,
		SessionID: h.ensureSession(state),
	})
	if err != nil {
		if errors.Is(err, processor.ErrEstimatorDisabled) {
			h.sendError(conn, "Image frames are not supported by this server")
			return
		}
		h.logger.Error("Image processing failed", zap.Error(err))
		h.sendError(conn, "Image processing failed")
		return
	}
	h.sendResult(conn, result)
}

func (h *WebSocketHandler) sendResult(conn *wsConn, result *models.FrameResult) {
	h.sendMessage(conn, "status", result)
	if result.RepCompleted {
		h.sendMessage(conn, "rep", gin.H{
			"session_id": result.SessionID,
			"rep_count":  result.Status.RepCount,
			"timestamp":  result.Timestamp,
		})
	}
}

func (h *WebSocketHandler) resetSession(conn *wsConn, state *connState, stop bool) {
	id := h.ensureSession(state)

	var (
		status models.ExerciseStatus
		err    error
	)
	if stop {
		status, err = h.processor.StopSession(id)
	} else {
		status, err = h.processor.ResetSession(id)
	}
	if err != nil {
		h.logger.Error("Failed to reset session", zap.Error(err))
		h.sendError(conn, "Reset failed")
		return
	}

	h.sendMessage(conn, "reset", gin.H{
		"session_id": id,
		"status":     status,
	})
}

func (h *WebSocketHandler) sendMessage(conn *wsConn, messageType string, data any) {
	message := ServerMessage{
		Type: messageType,
		Data: data,
	}

	if err := conn.writeJSON(message); err != nil {
		h.logger.Error("Failed to send WebSocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *wsConn, errorMsg string) {
	h.sendMessage(conn, "error", gin.H{
		"message":   errorMsg,
		"timestamp": time.Now().Unix(),
	})
}

func (h *WebSocketHandler) pingRoutine(conn *wsConn, ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				h.logger.Error("Failed to send ping", zap.Error(err))
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
