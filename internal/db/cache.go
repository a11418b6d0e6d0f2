// Package db provides the contact read cache.
package db

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/parlavoice/core/internal/models"
)

// DefaultContactCacheSize bounds the contact read cache.
const DefaultContactCacheSize = 256

// ContactCache is an LRU cache over contacts keyed by id. Mobile hosts
// re-read the same small set of conversation partners constantly, so even a
// small cache absorbs most lookups. All methods tolerate a nil receiver.
type ContactCache struct {
	lru *lru.Cache[models.UUID, models.Contact]
}

// NewContactCache creates a cache with the given capacity.
func NewContactCache(size int) (*ContactCache, error) {
	if size <= 0 {
		size = DefaultContactCacheSize
	}
	c, err := lru.New[models.UUID, models.Contact](size)
	if err != nil {
		return nil, err
	}
	return &ContactCache{lru: c}, nil
}

// Get returns a copy of the cached contact, if present.
func (c *ContactCache) Get(id models.UUID) (*models.Contact, bool) {
	if c == nil {
		return nil, false
	}
	contact, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	return &contact, true
}

// Put stores a contact by value, so later mutations of the caller's copy
// don't leak into the cache.
func (c *ContactCache) Put(contact *models.Contact) {
	if c == nil || contact == nil {
		return
	}
	c.lru.Add(contact.ID, *contact)
}

// Remove drops a contact from the cache.
func (c *ContactCache) Remove(id models.UUID) {
	if c == nil {
		return
	}
	c.lru.Remove(id)
}

// Purge empties the cache.
func (c *ContactCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
