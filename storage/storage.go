/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package storage

import (
	"github.com/ortuman/mink/model/rostermodel"
)

// Storage represents the client persistent cache: the local roster
// mirror and the entity capabilities cache.
type Storage interface {
	// UpsertRosterItem inserts a roster item entity into storage,
	// or updates it if it was previously inserted.
	UpsertRosterItem(ri *rostermodel.Item) error

	// DeleteRosterItem deletes a roster item entity from storage.
	DeleteRosterItem(contactJID string) error

	// FetchRosterItems retrieves every roster item entity from storage.
	FetchRosterItems() ([]rostermodel.Item, error)

	// FetchRosterItem retrieves a roster item entity from storage.
	FetchRosterItem(contactJID string) (*rostermodel.Item, error)

	// UpsertCapabilities associates a feature set to a
	// capabilities verification string.
	UpsertCapabilities(ver string, features []string) error

	// FetchCapabilities retrieves the feature set associated to a
	// capabilities verification string, or nil when uncached.
	FetchCapabilities(ver string) ([]string, error)

	// Close releases every underlying storage resource.
	Close() error
}
