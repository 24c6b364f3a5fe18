package model

import "time"

// LineMessage is one message exchanged over the LINE messaging platform.
// LineUserID is LINE's opaque user identifier, not a CRM user ID.
type LineMessage struct {
	ID          int64     `json:"id" db:"id"`
	LineUserID  string    `json:"user_id" db:"line_user_id"`
	MessageText string    `json:"message_text" db:"message_text"`
	MessageType string    `json:"message_type" db:"message_type"`
	StickerID   string    `json:"sticker_id,omitempty" db:"sticker_id"`
	StickerURL  string    `json:"sticker_url,omitempty" db:"sticker_url"`
	ReplyToken  string    `json:"reply_token,omitempty" db:"reply_token"`
	IsRead      bool      `json:"is_read" db:"is_read"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// LineUser is the profile of a LINE contact as last seen by the webhook.
type LineUser struct {
	ID            int64      `json:"id" db:"id"`
	LineUserID    string     `json:"user_id" db:"line_user_id"`
	DisplayName   string     `json:"display_name,omitempty" db:"display_name"`
	PictureURL    string     `json:"picture_url,omitempty" db:"picture_url"`
	StatusMessage string     `json:"status_message,omitempty" db:"status_message"`
	LastTyping    *time.Time `json:"last_typing,omitempty" db:"last_typing"`
}
