// Package handler contains the HTTP and WebSocket controllers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"miba-assist-go/internal/model"
	"miba-assist-go/internal/repository"
	"miba-assist-go/internal/service"
	"miba-assist-go/pkg/log"
	"miba-assist-go/pkg/storage"
	"miba-assist-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Callback payload vocabulary understood by HandleCallback.
const (
	callbackSourcesPrefix  = "sources_"
	callbackPositivePrefix = "feedback_positive_"
	callbackNegativePrefix = "feedback_negative_"
	callbackHelp           = "action_show_help"
)

const welcomeText = "Hi! I am Mibi, the assistant bot of the MiBA program. " +
	"Ask me anything about the program: courses, schedules, exchange, documents. " +
	"If I cannot help, push the Help button to reach the Office."

const processingText = "Processing your request, please wait..."

const internalErrorText = "An internal error occurred while processing your request. Please try again later."

// inEvent is a message received over the chat WebSocket.
type inEvent struct {
	Type string `json:"type"` // "start", "message" or "callback"
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
}

// Button is one inline action under an answer.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// outEvent is a message sent over the chat WebSocket.
type outEvent struct {
	Type    string     `json:"type"` // "status", "answer", "sources", "help", "error", "info"
	Text    string     `json:"text"`
	HTML    bool       `json:"html,omitempty"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// ChatHandler serves the chat WebSocket and its REST companions.
type ChatHandler struct {
	chatService service.ChatService
	store       storage.ObjectStorage
	jwtManager  *token.ChatTokenManager
	helpText    string
}

// NewChatHandler creates a fully wired chat handler.
func NewChatHandler(chatService service.ChatService, store storage.ObjectStorage,
	jwtManager *token.ChatTokenManager, helpText string) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		store:       store,
		jwtManager:  jwtManager,
		helpText:    helpText,
	}
}

// Handle upgrades the connection after verifying the chat token and runs the
// per-connection event loop. Events on one connection are processed strictly
// in order.
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", err)
		return
	}
	defer conn.Close()

	chatID := claims.ChatID
	log.Infof("WebSocket connection established, chat %s", chatID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("reading from WebSocket for chat %s failed: %v", chatID, err)
			break
		}

		var event inEvent
		if err := unmarshalEvent(message, &event); err != nil {
			log.Warnf("malformed event from chat %s: %v", chatID, err)
			h.send(conn, outEvent{Type: "error", Text: "I could not understand that message."})
			continue
		}
		h.dispatch(c.Request.Context(), conn, chatID, event)
	}
}

func (h *ChatHandler) dispatch(ctx context.Context, conn *websocket.Conn, chatID string, event inEvent) {
	switch event.Type {
	case "start":
		h.chatService.ResetChat(ctx, chatID)
		h.send(conn, outEvent{Type: "info", Text: welcomeText})
	case "message":
		h.handleMessage(ctx, conn, chatID, event.Text)
	case "callback":
		h.handleCallback(ctx, conn, chatID, event.Data)
	default:
		h.send(conn, outEvent{Type: "error", Text: "I could not understand that message."})
	}
}

func (h *ChatHandler) handleMessage(ctx context.Context, conn *websocket.Conn, chatID, text string) {
	if strings.TrimSpace(text) == "" {
		h.send(conn, outEvent{Type: "error", Text: "Please send a text question."})
		return
	}

	h.send(conn, outEvent{Type: "status", Text: processingText})

	interaction, err := h.chatService.HandleQuery(ctx, chatID, text)
	if err != nil {
		log.Errorf("query handling failed for chat %s: %v", chatID, err)
		h.send(conn, outEvent{Type: "error", Text: internalErrorText})
		return
	}

	h.send(conn, outEvent{
		Type:    "answer",
		Text:    interaction.Answer,
		Buttons: answerButtons(interaction, false),
	})
}

// handleCallback reacts to a button press. A malformed payload gets a polite
// error and leaves all state untouched.
func (h *ChatHandler) handleCallback(ctx context.Context, conn *websocket.Conn, chatID, data string) {
	switch {
	case data == callbackHelp:
		h.send(conn, outEvent{Type: "help", Text: h.helpText, HTML: true})
	case strings.HasPrefix(data, callbackSourcesPrefix):
		h.sendSources(ctx, conn, chatID, strings.TrimPrefix(data, callbackSourcesPrefix))
	case strings.HasPrefix(data, callbackPositivePrefix):
		h.recordFeedback(ctx, conn, chatID, strings.TrimPrefix(data, callbackPositivePrefix), model.FeedbackPositive)
	case strings.HasPrefix(data, callbackNegativePrefix):
		h.recordFeedback(ctx, conn, chatID, strings.TrimPrefix(data, callbackNegativePrefix), model.FeedbackNegative)
	default:
		log.Warnf("unknown callback payload from chat %s: %q", chatID, data)
		h.send(conn, outEvent{Type: "error", Text: "That button is no longer available."})
	}
}

// sendSources renders the deduplicated source documents of one interaction as
// presigned download links.
func (h *ChatHandler) sendSources(ctx context.Context, conn *websocket.Conn, chatID, interactionID string) {
	interaction, err := h.chatService.GetInteraction(ctx, chatID, interactionID)
	if err != nil {
		log.Warnf("sources lookup failed for interaction %s: %v", interactionID, err)
		h.send(conn, outEvent{Type: "error", Text: "I could not find the sources for that answer anymore."})
		return
	}

	var lines []string
	seen := make(map[string]bool)
	for _, doc := range interaction.ContextDocs {
		key := doc.SourceKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		url, err := h.store.PresignedURL(ctx, key, storage.DefaultURLExpiry)
		if err != nil {
			log.Warnf("presigning %s failed: %v", key, err)
			lines = append(lines, path.Base(key))
			continue
		}
		lines = append(lines, fmt.Sprintf(`<a href="%s">%s</a>`, url, path.Base(key)))
	}

	if len(lines) == 0 {
		h.send(conn, outEvent{Type: "sources", Text: "This answer was produced without source documents."})
		return
	}
	h.send(conn, outEvent{
		Type: "sources",
		Text: "Sources:\n" + strings.Join(lines, "\n"),
		HTML: true,
	})
}

func (h *ChatHandler) recordFeedback(ctx context.Context, conn *websocket.Conn, chatID, interactionID, sentiment string) {
	err := h.chatService.RecordFeedback(ctx, chatID, interactionID, sentiment)
	switch {
	case errors.Is(err, repository.ErrFeedbackLocked):
		h.send(conn, outEvent{Type: "info", Text: "Feedback for this answer was already recorded."})
		return
	case errors.Is(err, repository.ErrInteractionNotFound):
		h.send(conn, outEvent{Type: "error", Text: "That button is no longer available."})
		return
	case err != nil:
		log.Errorf("recording feedback for interaction %s failed: %v", interactionID, err)
		h.send(conn, outEvent{Type: "error", Text: internalErrorText})
		return
	}

	interaction, err := h.chatService.GetInteraction(ctx, chatID, interactionID)
	if err != nil {
		h.send(conn, outEvent{Type: "info", Text: "Thank you for your feedback!"})
		return
	}
	// Re-render the answer's buttons without the feedback row.
	h.send(conn, outEvent{
		Type:    "info",
		Text:    "Thank you for your feedback!",
		Buttons: answerButtons(interaction, true),
	})
}

// answerButtons builds the inline rows under an answer. The feedback row is
// omitted once feedback has been recorded; the sources row is omitted when no
// context grounded the answer.
func answerButtons(interaction *model.Interaction, feedbackDone bool) [][]Button {
	var rows [][]Button
	if len(interaction.ContextDocs) > 0 {
		rows = append(rows, []Button{
			{Label: "See the sources \U0001F4C4", Data: callbackSourcesPrefix + interaction.ID},
		})
	}
	if !feedbackDone && interaction.Feedback == model.FeedbackUnset {
		rows = append(rows, []Button{
			{Label: "\U0001F44D", Data: callbackPositivePrefix + interaction.ID},
			{Label: "\U0001F44E", Data: callbackNegativePrefix + interaction.ID},
		})
	}
	rows = append(rows, []Button{
		{Label: "Help", Data: callbackHelp},
	})
	return rows
}

func unmarshalEvent(raw []byte, event *inEvent) error {
	if err := json.Unmarshal(raw, event); err != nil {
		return err
	}
	if event.Type == "" {
		return errors.New("event has no type")
	}
	return nil
}

func (h *ChatHandler) send(conn *websocket.Conn, event outEvent) {
	if err := conn.WriteJSON(event); err != nil {
		log.Warnf("writing to WebSocket failed: %v", err)
	}
}
