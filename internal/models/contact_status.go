// Package models provides data model definitions for Parla Core.
package models

// ContactStatus represents a contact's presence state.
type ContactStatus struct {
	ID     UUID `db:"uuid" json:"uuid"`
	Status int  `db:"status" json:"status"`
}

// TableName returns the table name for ContactStatus.
func (ContactStatus) TableName() string {
	return "contact_status_data"
}
