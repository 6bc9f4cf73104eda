/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sql

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ortuman/mink/model/rostermodel"
)

// UpsertRosterItem inserts a roster item entity into storage,
// or updates it if it was previously inserted.
func (s *Storage) UpsertRosterItem(ri *rostermodel.Item) error {
	groups := strings.Join(ri.Groups, "\n")
	ask := 0
	if ri.Ask {
		ask = 1
	}
	var suffix string
	var suffixArgs []interface{}
	if s.driver == "postgres" {
		suffix = "ON CONFLICT (contact_jid) DO UPDATE SET name = $6, subscription = $7, ask = $8, groups = $9"
	} else {
		suffix = "ON DUPLICATE KEY UPDATE name = ?, subscription = ?, ask = ?, groups = ?"
	}
	suffixArgs = []interface{}{ri.Name, ri.Subscription, ask, groups}

	q := s.builder.Insert("roster_items").
		Columns("contact_jid", "name", "subscription", "ask", "groups").
		Values(ri.JID, ri.Name, ri.Subscription, ask, groups).
		Suffix(suffix, suffixArgs...)

	_, err := q.RunWith(s.db).Exec()
	return err
}

// DeleteRosterItem deletes a roster item entity from storage.
func (s *Storage) DeleteRosterItem(contactJID string) error {
	_, err := s.builder.Delete("roster_items").
		Where(sq.Eq{"contact_jid": contactJID}).
		RunWith(s.db).Exec()
	return err
}

// FetchRosterItems retrieves every roster item entity from storage.
func (s *Storage) FetchRosterItems() ([]rostermodel.Item, error) {
	rows, err := s.builder.Select("contact_jid", "name", "subscription", "ask", "groups").
		From("roster_items").
		OrderBy("contact_jid").
		RunWith(s.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []rostermodel.Item
	for rows.Next() {
		ri, err := scanRosterItem(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *ri)
	}
	return ret, nil
}

// FetchRosterItem retrieves a roster item entity from storage.
func (s *Storage) FetchRosterItem(contactJID string) (*rostermodel.Item, error) {
	row := s.builder.Select("contact_jid", "name", "subscription", "ask", "groups").
		From("roster_items").
		Where(sq.Eq{"contact_jid": contactJID}).
		RunWith(s.db).QueryRow()

	ri, err := scanRosterItem(row)
	switch err {
	case nil:
		return ri, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRosterItem(scanner rowScanner) (*rostermodel.Item, error) {
	var ri rostermodel.Item
	var ask int
	var groups string
	if err := scanner.Scan(&ri.JID, &ri.Name, &ri.Subscription, &ask, &groups); err != nil {
		return nil, err
	}
	ri.Ask = ask != 0
	if len(groups) > 0 {
		ri.Groups = strings.Split(groups, "\n")
	}
	return &ri, nil
}
