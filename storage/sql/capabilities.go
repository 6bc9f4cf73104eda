/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sql

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// UpsertCapabilities associates a feature set to a
// capabilities verification string.
func (s *Storage) UpsertCapabilities(ver string, features []string) error {
	fs := strings.Join(features, "\n")

	var suffix string
	if s.driver == "postgres" {
		suffix = "ON CONFLICT (ver) DO UPDATE SET features = $3"
	} else {
		suffix = "ON DUPLICATE KEY UPDATE features = ?"
	}
	q := s.builder.Insert("capabilities").
		Columns("ver", "features").
		Values(ver, fs).
		Suffix(suffix, fs)

	_, err := q.RunWith(s.db).Exec()
	return err
}

// FetchCapabilities retrieves the feature set associated to a
// capabilities verification string, or nil when uncached.
func (s *Storage) FetchCapabilities(ver string) ([]string, error) {
	var fs string
	err := s.builder.Select("features").
		From("capabilities").
		Where(sq.Eq{"ver": ver}).
		RunWith(s.db).QueryRow().Scan(&fs)
	switch err {
	case nil:
		if len(fs) == 0 {
			return []string{}, nil
		}
		return strings.Split(fs, "\n"), nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}
