// Package models provides data model definitions for Parla Core.
package models

import "encoding/json"

// ContactSeenAt records when each conversation with a contact was last viewed.
// Dates is keyed by conversation identifier and stored as a JSON document.
type ContactSeenAt struct {
	ID    UUID             `db:"uuid" json:"uuid"`
	Dates map[string]int64 `db:"date" json:"date"`
}

// TableName returns the table name for ContactSeenAt.
func (ContactSeenAt) TableName() string {
	return "contact_seen_at_data"
}

// EncodeDates serializes the Dates map for storage.
func (c *ContactSeenAt) EncodeDates() (string, error) {
	if c.Dates == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c.Dates)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeDates restores the Dates map from its stored form.
func (c *ContactSeenAt) DecodeDates(raw string) error {
	if raw == "" {
		c.Dates = map[string]int64{}
		return nil
	}
	return json.Unmarshal([]byte(raw), &c.Dates)
}
