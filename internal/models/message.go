// Package models provides data model definitions for Parla Core.
package models

import "time"

// MessageStatus tracks delivery progress of a message.
type MessageStatus int

const (
	MessageDraft     MessageStatus = 0
	MessagePending   MessageStatus = 1
	MessageSent      MessageStatus = 2
	MessageDelivered MessageStatus = 3
	MessageFailed    MessageStatus = 4
)

// Message represents a voice message and its translation pipeline state.
type Message struct {
	ID             UUID          `db:"id" json:"id"`
	FromUUID       UUID          `db:"from_uuid" json:"from_uuid"`
	ToUUID         UUID          `db:"to_uuid" json:"to_uuid"`
	Prev           UUID          `db:"prev" json:"prev,omitempty"` // previous message in the thread
	Status         MessageStatus `db:"status" json:"status"`
	AudioURL       string        `db:"audio_url" json:"audio_url,omitempty"`
	Duration       float64       `db:"duration" json:"duration"`
	Text           string        `db:"text" json:"text"`
	TranslatedText string        `db:"translated_text" json:"translated_text,omitempty"`
	Language       string        `db:"language" json:"language"`
	Error          string        `db:"error" json:"error,omitempty"`
	CreatedAt      int64         `db:"created_at" json:"created_at"`
	UpdatedAt      int64         `db:"updated_at" json:"updated_at"`
	TryCount       int           `db:"try_count" json:"try_count"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "message_data"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (m *Message) CreatedAtTime() time.Time {
	return time.Unix(m.CreatedAt, 0)
}
