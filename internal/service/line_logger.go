package service

import (
	"context"
	"strings"

	"github.com/leadgate/leadgate/internal/model"
)

// chatPreviewLength caps how much message text a chat log record carries.
const chatPreviewLength = 100

const suppressedPlaceholder = "[content suppressed]"

// sensitivePatterns flag message text that must not be persisted, even
// truncated.
var sensitivePatterns = []string{
	"password",
	"passwd",
	"token",
	"secret",
	"credit card",
	"card number",
	"api key",
	"api_key",
}

// ChatLogger records LINE messaging activity as system events. Message text
// is reduced to a short preview and suppressed entirely when it looks like it
// carries credentials or card data.
type ChatLogger struct {
	writer *Writer
}

func NewChatLogger(writer *Writer) *ChatLogger {
	return &ChatLogger{writer: writer}
}

// Message records one chat message. direction is "inbound" for user messages
// and "outbound" for replies sent by the CRM.
func (c *ChatLogger) Message(ctx context.Context, lineUserID, direction, messageType, text string, userID *int64) {
	c.writer.SystemEvent(ctx, SystemEvent{
		Level:    model.LevelInfo,
		Category: model.CategoryChatMessage,
		Message:  "chat message " + direction,
		Module:   "line",
		UserID:   userID,
		ExtraData: map[string]any{
			"line_user_id": lineUserID,
			"direction":    direction,
			"message_type": messageType,
			"preview":      previewText(text),
		},
	}, nil)
}

// Event records a non-message LINE event such as follow, unfollow or join.
func (c *ChatLogger) Event(ctx context.Context, lineUserID, eventType string) {
	c.writer.SystemEvent(ctx, SystemEvent{
		Level:    model.LevelInfo,
		Category: model.CategoryChatEvent,
		Message:  "chat event " + eventType,
		Module:   "line",
		ExtraData: map[string]any{
			"line_user_id": lineUserID,
			"event_type":   eventType,
		},
	}, nil)
}

// Moderation records an action taken against a chat participant.
func (c *ChatLogger) Moderation(ctx context.Context, lineUserID, action, reason string, actorID *int64) {
	c.writer.SystemEvent(ctx, SystemEvent{
		Level:    model.LevelWarning,
		Category: model.CategoryChatModeration,
		Message:  "chat moderation " + action,
		Module:   "line",
		UserID:   actorID,
		ExtraData: map[string]any{
			"line_user_id": lineUserID,
			"action":       action,
			"reason":       reason,
		},
	}, nil)
}

// previewText returns at most chatPreviewLength runes of text, or a
// placeholder when the text matches a sensitive pattern.
func previewText(text string) string {
	lowered := strings.ToLower(text)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowered, pattern) {
			return suppressedPlaceholder
		}
	}
	runes := []rune(text)
	if len(runes) <= chatPreviewLength {
		return text
	}
	return string(runes[:chatPreviewLength]) + "..."
}
