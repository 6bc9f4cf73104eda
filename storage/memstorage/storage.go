/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"sync"

	"github.com/ortuman/mink/model/rostermodel"
)

// Storage represents an in memory storage instance.
type Storage struct {
	mu           sync.RWMutex
	rosterItems  map[string]rostermodel.Item
	capabilities map[string][]string
}

// New returns a new in memory storage instance.
func New() *Storage {
	return &Storage{
		rosterItems:  make(map[string]rostermodel.Item),
		capabilities: make(map[string][]string),
	}
}

// UpsertRosterItem inserts a roster item entity into storage,
// or updates it if it was previously inserted.
func (m *Storage) UpsertRosterItem(ri *rostermodel.Item) error {
	m.mu.Lock()
	m.rosterItems[ri.JID] = *ri
	m.mu.Unlock()
	return nil
}

// DeleteRosterItem deletes a roster item entity from storage.
func (m *Storage) DeleteRosterItem(contactJID string) error {
	m.mu.Lock()
	delete(m.rosterItems, contactJID)
	m.mu.Unlock()
	return nil
}

// FetchRosterItems retrieves every roster item entity from storage.
func (m *Storage) FetchRosterItems() ([]rostermodel.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]rostermodel.Item, 0, len(m.rosterItems))
	for _, ri := range m.rosterItems {
		ret = append(ret, ri)
	}
	return ret, nil
}

// FetchRosterItem retrieves a roster item entity from storage.
func (m *Storage) FetchRosterItem(contactJID string) (*rostermodel.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ri, ok := m.rosterItems[contactJID]
	if !ok {
		return nil, nil
	}
	return &ri, nil
}

// UpsertCapabilities associates a feature set to a
// capabilities verification string.
func (m *Storage) UpsertCapabilities(ver string, features []string) error {
	fs := make([]string, len(features))
	copy(fs, features)
	m.mu.Lock()
	m.capabilities[ver] = fs
	m.mu.Unlock()
	return nil
}

// FetchCapabilities retrieves the feature set associated to a
// capabilities verification string, or nil when uncached.
func (m *Storage) FetchCapabilities(ver string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	features, ok := m.capabilities[ver]
	if !ok {
		return nil, nil
	}
	ret := make([]string, len(features))
	copy(ret, features)
	return ret, nil
}

// Close satisfies Storage interface.
func (m *Storage) Close() error {
	return nil
}
