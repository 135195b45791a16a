package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/english-buddy/internal/models"
	"github.com/MegaGrindStone/english-buddy/internal/stream"
)

type chatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// chatMessage is the wire shape accepted from clients. Any other field, the client side id included, is
// dropped while decoding.
type chatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errInvalidMessages = errors.New("Invalid or missing messages in request body")

// HandleChat relays a conversation to the LLM and streams the reply back as event-stream frames.
//
// The handler expects a JSON body with a "messages" array of role/content pairs. A missing or malformed
// body, or a failure of the LLM before the first frame is available, is answered with status 500 and a
// JSON body carrying the error message; in that case nothing is streamed. Once streaming has started,
// every text delta is written and flushed as soon as it arrives, and the stream ends with a single
// [DONE] frame. A failure of the LLM after streaming started aborts the response, so that clients see
// a broken stream rather than a silently truncated reply.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	messages, err := decodeChatRequest(r.Body)
	if err != nil {
		m.logger.Error("Invalid chat request", slog.String(errLoggerKey, err.Error()))
		m.writeError(w, err)
		return
	}

	// We pull the first frame before writing any header, so a rejected provider call can still be
	// reported with a proper status code.
	next, stop := iter.Pull2(stream.Relay(m.llm.Chat(r.Context(), messages)))
	defer stop()

	frame, err, ok := next()
	if err != nil {
		m.logger.Error("Failed to start chat stream",
			slog.Int("messages", len(messages)),
			slog.String(errLoggerKey, err.Error()))
		m.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for ; ok; frame, err, ok = next() {
		if err != nil {
			m.logger.Error("Chat stream failed", slog.String(errLoggerKey, err.Error()))
			panic(http.ErrAbortHandler)
		}
		if err := stream.WriteFrame(w, frame); err != nil {
			m.logger.Debug("Client went away", slog.String(errLoggerKey, err.Error()))
			return
		}
		if err := rc.Flush(); err != nil {
			m.logger.Debug("Failed to flush frame", slog.String(errLoggerKey, err.Error()))
			return
		}
	}
}

func decodeChatRequest(body io.Reader) ([]models.Message, error) {
	var req chatRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("Invalid request body: %w", err)
	}

	raw := bytes.TrimSpace(req.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errInvalidMessages
	}

	var msgs []chatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("Invalid messages in request body: %w", err)
	}

	messages := make([]models.Message, len(msgs))
	for i, msg := range msgs {
		role, err := models.ParseRole(string(msg.Role))
		if err != nil {
			return nil, fmt.Errorf("Invalid message at index %d: %w", i, err)
		}
		messages[i] = models.Message{
			Role:    role,
			Content: msg.Content,
		}
	}
	return messages, nil
}

func (m Main) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: err.Error()}); err != nil {
		m.logger.Error("Failed to write error response", slog.String(errLoggerKey, err.Error()))
	}
}
