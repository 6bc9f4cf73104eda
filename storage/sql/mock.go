/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sql

import (
	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// NewMock returns a mocked MySQL storage instance along with
// its expectation handle. Meant to be used from tests.
func NewMock() (*Storage, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		panic(err)
	}
	return newStorage(db, "mysql"), mock
}
