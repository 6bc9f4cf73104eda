/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sql

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSQLStorageUpsertCapabilities(t *testing.T) {
	features := []string{"http://jabber.org/protocol/disco#info", "jabber:iq:privacy"}

	s, mock := NewMock()
	mock.ExpectExec("INSERT INTO capabilities (.+) ON DUPLICATE KEY UPDATE (.+)").
		WithArgs("q07IKJEyjvHSyhy//CH0CxmKi8w=", "http://jabber.org/protocol/disco#info\njabber:iq:privacy", "http://jabber.org/protocol/disco#info\njabber:iq:privacy").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertCapabilities("q07IKJEyjvHSyhy//CH0CxmKi8w=", features)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestSQLStorageFetchCapabilities(t *testing.T) {
	s, mock := NewMock()
	mock.ExpectQuery("SELECT features FROM capabilities (.+)").
		WithArgs("q07IKJEyjvHSyhy//CH0CxmKi8w=").
		WillReturnRows(sqlmock.NewRows([]string{"features"}).AddRow("jabber:iq:privacy"))

	features, err := s.FetchCapabilities("q07IKJEyjvHSyhy//CH0CxmKi8w=")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, []string{"jabber:iq:privacy"}, features)

	s, mock = NewMock()
	mock.ExpectQuery("SELECT features FROM capabilities (.+)").
		WithArgs("q07IKJEyjvHSyhy//CH0CxmKi8w=").
		WillReturnRows(sqlmock.NewRows([]string{"features"}))

	features, err = s.FetchCapabilities("q07IKJEyjvHSyhy//CH0CxmKi8w=")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, features)
}
