// Package db provides CRUD repository operations for Parla Core data models.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/parlavoice/core/internal/history"
	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/telemetry"
)

// Repository provides CRUD operations for all entity models. Every semantic
// write appends a history ledger record in the same transaction as the
// entity write, so the ledger and the entity tables never diverge.
type Repository struct {
	db     *sql.DB
	ledger *history.Ledger
	cache  *ContactCache

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance. cache may be nil to
// disable contact read caching.
func NewRepository(db *sql.DB, ledger *history.Ledger, cache *ContactCache) *Repository {
	return &Repository{db: db, ledger: ledger, cache: cache}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate.
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// inTx runs fn in a transaction, rolling back on error.
func (r *Repository) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// rowExists reports whether a row with the given key exists, inside tx.
func rowExists(tx *sql.Tx, query string, key interface{}) (bool, error) {
	var one int
	err := tx.QueryRow(query, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =====================================================
// Contact Operations
// =====================================================

// UpsertContact inserts or updates a contact and records the change in the
// history ledger under the given author.
func (r *Repository) UpsertContact(contact *models.Contact, author string) error {
	if err := contact.ID.Validate(); err != nil {
		return fmt.Errorf("invalid contact id: %w", err)
	}

	now := time.Now().Unix()
	contact.UpdatedAt = now

	err := telemetry.ObserveQuery("contact_upsert", func() error {
		return r.inTx(func(tx *sql.Tx) error {
			exists, err := rowExists(tx, "SELECT 1 FROM contact_data WHERE id = ?", contact.ID)
			if err != nil {
				return err
			}

			changeType := models.ChangeInsert
			if exists {
				changeType = models.ChangeUpdate
			} else if contact.CreatedAt == 0 {
				contact.CreatedAt = now
			}

			query := `
			INSERT INTO contact_data (id, first_name, last_name, language, picture_data, picture_url,
				last_message_at, created_at, updated_at, pro, relationship)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				language = excluded.language,
				picture_data = excluded.picture_data,
				picture_url = excluded.picture_url,
				last_message_at = excluded.last_message_at,
				updated_at = excluded.updated_at,
				pro = excluded.pro,
				relationship = excluded.relationship
			`
			if _, err := tx.Exec(query, contact.ID, contact.FirstName, contact.LastName,
				contact.Language, contact.PictureData, contact.PictureURL,
				contact.LastMessageAt, contact.CreatedAt, contact.UpdatedAt,
				contact.Pro, contact.Relationship); err != nil {
				return err
			}

			_, err = r.ledger.AppendTx(tx, models.EntityContact, contact.ID, changeType, author)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", contact.ID, err)
	}

	r.cache.Put(contact)
	return nil
}

// GetContact retrieves a contact by id, serving from the read cache when
// possible.
func (r *Repository) GetContact(id models.UUID) (*models.Contact, error) {
	if contact, ok := r.cache.Get(id); ok {
		return contact, nil
	}

	query := `
	SELECT id, first_name, last_name, language, picture_data, picture_url,
		   last_message_at, created_at, updated_at, pro, relationship
	FROM contact_data WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var contact models.Contact
	var pictureURL sql.NullString
	err = stmt.QueryRow(id).Scan(
		&contact.ID, &contact.FirstName, &contact.LastName, &contact.Language,
		&contact.PictureData, &pictureURL, &contact.LastMessageAt,
		&contact.CreatedAt, &contact.UpdatedAt, &contact.Pro, &contact.Relationship,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	if pictureURL.Valid {
		contact.PictureURL = pictureURL.String
	}

	r.cache.Put(&contact)
	return &contact, nil
}

// ListContacts returns all contacts, most recently messaged first.
func (r *Repository) ListContacts() ([]models.Contact, error) {
	query := `
	SELECT id, first_name, last_name, language, picture_data, picture_url,
		   last_message_at, created_at, updated_at, pro, relationship
	FROM contact_data ORDER BY last_message_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var contact models.Contact
		var pictureURL sql.NullString
		if err := rows.Scan(
			&contact.ID, &contact.FirstName, &contact.LastName, &contact.Language,
			&contact.PictureData, &pictureURL, &contact.LastMessageAt,
			&contact.CreatedAt, &contact.UpdatedAt, &contact.Pro, &contact.Relationship,
		); err != nil {
			return nil, err
		}
		if pictureURL.Valid {
			contact.PictureURL = pictureURL.String
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

// DeleteContact removes a contact and records the deletion.
func (r *Repository) DeleteContact(id models.UUID, author string) error {
	err := telemetry.ObserveQuery("contact_delete", func() error {
		return r.inTx(func(tx *sql.Tx) error {
			res, err := tx.Exec("DELETE FROM contact_data WHERE id = ?", id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("contact not found: %s", id)
			}

			_, err = r.ledger.AppendTx(tx, models.EntityContact, id, models.ChangeDelete, author)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}

	r.cache.Remove(id)
	return nil
}

// =====================================================
// Message Operations
// =====================================================

// AddMessage inserts a message and records the change.
func (r *Repository) AddMessage(msg *models.Message, author string) error {
	if err := msg.ID.Validate(); err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}

	now := time.Now().Unix()
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	err := telemetry.ObserveQuery("message_add", func() error {
		return r.inTx(func(tx *sql.Tx) error {
			query := `
			INSERT INTO message_data (id, from_uuid, to_uuid, prev, status, audio_url, duration,
				text, translated_text, language, error, created_at, updated_at, try_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`
			if _, err := tx.Exec(query, msg.ID, msg.FromUUID, msg.ToUUID, msg.Prev,
				msg.Status, msg.AudioURL, msg.Duration, msg.Text, msg.TranslatedText,
				msg.Language, msg.Error, msg.CreatedAt, msg.UpdatedAt, msg.TryCount); err != nil {
				return err
			}

			_, err := r.ledger.AppendTx(tx, models.EntityMessage, msg.ID, models.ChangeInsert, author)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to add message %s: %w", msg.ID, err)
	}
	return nil
}

// UpdateMessage rewrites a message's mutable fields and records the change.
func (r *Repository) UpdateMessage(msg *models.Message, author string) error {
	msg.UpdatedAt = time.Now().Unix()

	err := telemetry.ObserveQuery("message_update", func() error {
		return r.inTx(func(tx *sql.Tx) error {
			query := `
			UPDATE message_data SET status = ?, audio_url = ?, duration = ?, text = ?,
				translated_text = ?, language = ?, error = ?, updated_at = ?, try_count = ?
			WHERE id = ?
			`
			res, err := tx.Exec(query, msg.Status, msg.AudioURL, msg.Duration, msg.Text,
				msg.TranslatedText, msg.Language, msg.Error, msg.UpdatedAt, msg.TryCount, msg.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("message not found: %s", msg.ID)
			}

			_, err = r.ledger.AppendTx(tx, models.EntityMessage, msg.ID, models.ChangeUpdate, author)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update message %s: %w", msg.ID, err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (r *Repository) GetMessage(id models.UUID) (*models.Message, error) {
	query := `
	SELECT id, from_uuid, to_uuid, prev, status, audio_url, duration, text,
		   translated_text, language, error, created_at, updated_at, try_count
	FROM message_data WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	var prev, audioURL, translatedText, errText sql.NullString
	err = stmt.QueryRow(id).Scan(
		&msg.ID, &msg.FromUUID, &msg.ToUUID, &prev, &msg.Status, &audioURL,
		&msg.Duration, &msg.Text, &translatedText, &msg.Language, &errText,
		&msg.CreatedAt, &msg.UpdatedAt, &msg.TryCount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	msg.Prev = models.UUID(prev.String)
	if audioURL.Valid {
		msg.AudioURL = audioURL.String
	}
	if translatedText.Valid {
		msg.TranslatedText = translatedText.String
	}
	if errText.Valid {
		msg.Error = errText.String
	}
	return &msg, nil
}

// ListMessagesWith returns the messages exchanged with one contact, oldest
// first.
func (r *Repository) ListMessagesWith(contactID models.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
	SELECT id, from_uuid, to_uuid, prev, status, audio_url, duration, text,
		   translated_text, language, error, created_at, updated_at, try_count
	FROM message_data WHERE from_uuid = ? OR to_uuid = ?
	ORDER BY created_at ASC LIMIT ?
	`
	rows, err := r.db.Query(query, contactID, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var prev, audioURL, translatedText, errText sql.NullString
		if err := rows.Scan(
			&msg.ID, &msg.FromUUID, &msg.ToUUID, &prev, &msg.Status, &audioURL,
			&msg.Duration, &msg.Text, &translatedText, &msg.Language, &errText,
			&msg.CreatedAt, &msg.UpdatedAt, &msg.TryCount,
		); err != nil {
			return nil, err
		}
		msg.Prev = models.UUID(prev.String)
		if audioURL.Valid {
			msg.AudioURL = audioURL.String
		}
		if translatedText.Valid {
			msg.TranslatedText = translatedText.String
		}
		if errText.Valid {
			msg.Error = errText.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// =====================================================
// ContactStatus Operations
// =====================================================

// UpsertContactStatus inserts or updates a contact's presence state.
func (r *Repository) UpsertContactStatus(status *models.ContactStatus, author string) error {
	if err := status.ID.Validate(); err != nil {
		return fmt.Errorf("invalid contact status id: %w", err)
	}

	err := telemetry.ObserveQuery("status_upsert", func() error {
		return r.inTx(func(tx *sql.Tx) error {
			exists, err := rowExists(tx, "SELECT 1 FROM contact_status_data WHERE uuid = ?", status.ID)
			if err != nil {
				return err
			}
			changeType := models.ChangeInsert
			if exists {
				changeType = models.ChangeUpdate
			}

			query := `
			INSERT INTO contact_status_data (uuid, status) VALUES (?, ?)
			ON CONFLICT(uuid) DO UPDATE SET status = excluded.status
			`
			if _, err := tx.Exec(query, status.ID, status.Status); err != nil {
				return err
			}

			_, err = r.ledger.AppendTx(tx, models.EntityContactStatus, status.ID, changeType, author)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert contact status %s: %w", status.ID, err)
	}
	return nil
}

// GetContactStatus retrieves a contact's presence state.
func (r *Repository) GetContactStatus(id models.UUID) (*models.ContactStatus, error) {
	stmt, err := r.PrepareStmt("SELECT uuid, status FROM contact_status_data WHERE uuid = ?")
	if err != nil {
		return nil, err
	}

	var status models.ContactStatus
	err = stmt.QueryRow(id).Scan(&status.ID, &status.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact status not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact status %s: %w", id, err)
	}
	return &status, nil
}

// =====================================================
// ContactSeenAt Operations
// =====================================================

// UpsertSeenAt inserts or updates a contact's seen-at marker document.
func (r *Repository) UpsertSeenAt(seen *models.ContactSeenAt, author string) error {
	if err := seen.ID.Validate(); err != nil {
		return fmt.Errorf("invalid seen-at id: %w", err)
	}
	encoded, err := seen.EncodeDates()
	if err != nil {
		return fmt.Errorf("failed to encode seen-at dates: %w", err)
	}

	err = telemetry.ObserveQuery("seen_at_upsert", func() error {
		return r.inTx(func(tx *sql.Tx) error {
			exists, err := rowExists(tx, "SELECT 1 FROM contact_seen_at_data WHERE uuid = ?", seen.ID)
			if err != nil {
				return err
			}
			changeType := models.ChangeInsert
			if exists {
				changeType = models.ChangeUpdate
			}

			query := `
			INSERT INTO contact_seen_at_data (uuid, date) VALUES (?, ?)
			ON CONFLICT(uuid) DO UPDATE SET date = excluded.date
			`
			if _, err := tx.Exec(query, seen.ID, encoded); err != nil {
				return err
			}

			_, err = r.ledger.AppendTx(tx, models.EntityContactSeenAt, seen.ID, changeType, author)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert seen-at %s: %w", seen.ID, err)
	}
	return nil
}

// GetSeenAt retrieves a contact's seen-at marker document.
func (r *Repository) GetSeenAt(id models.UUID) (*models.ContactSeenAt, error) {
	stmt, err := r.PrepareStmt("SELECT uuid, date FROM contact_seen_at_data WHERE uuid = ?")
	if err != nil {
		return nil, err
	}

	var seen models.ContactSeenAt
	var raw string
	err = stmt.QueryRow(id).Scan(&seen.ID, &raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("seen-at not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seen-at %s: %w", id, err)
	}
	if err := seen.DecodeDates(raw); err != nil {
		return nil, fmt.Errorf("corrupt seen-at document for %s: %w", id, err)
	}
	return &seen, nil
}
