// Package models provides data model definitions for Parla Core.
package models

import "time"

// ContactRelationship classifies how a contact relates to the device owner.
type ContactRelationship int

const (
	RelationshipNone    ContactRelationship = 0
	RelationshipFriend  ContactRelationship = 1
	RelationshipBlocked ContactRelationship = 2
)

// Contact represents a conversation partner.
type Contact struct {
	ID            UUID                `db:"id" json:"id"`
	FirstName     string              `db:"first_name" json:"first_name"`
	LastName      string              `db:"last_name" json:"last_name"`
	Language      string              `db:"language" json:"language"`
	PictureData   []byte              `db:"picture_data" json:"picture_data,omitempty"`
	PictureURL    string              `db:"picture_url" json:"picture_url,omitempty"`
	LastMessageAt int64               `db:"last_message_at" json:"last_message_at"`
	CreatedAt     int64               `db:"created_at" json:"created_at"`
	UpdatedAt     int64               `db:"updated_at" json:"updated_at"`
	Pro           bool                `db:"pro" json:"pro"`
	Relationship  ContactRelationship `db:"relationship" json:"relationship"`
}

// TableName returns the table name for Contact.
func (Contact) TableName() string {
	return "contact_data"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (c *Contact) CreatedAtTime() time.Time {
	return time.Unix(c.CreatedAt, 0)
}
