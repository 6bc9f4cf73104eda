/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sql

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/model/rostermodel"
)

var errMockedStorage = errors.New("sql: storage error")

func TestSQLStorageUpsertRosterItem(t *testing.T) {
	ri := rostermodel.Item{
		JID:          "ortuman@jackal.im",
		Name:         "Miguel",
		Subscription: rostermodel.SubscriptionBoth,
		Groups:       []string{"general", "friends"},
	}
	s, mock := NewMock()
	mock.ExpectExec("INSERT INTO roster_items (.+) ON DUPLICATE KEY UPDATE (.+)").
		WithArgs("ortuman@jackal.im", "Miguel", "both", 0, "general\nfriends", "Miguel", "both", 0, "general\nfriends").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertRosterItem(&ri)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)

	s, mock = NewMock()
	mock.ExpectExec("INSERT INTO roster_items (.+) ON DUPLICATE KEY UPDATE (.+)").
		WithArgs("ortuman@jackal.im", "Miguel", "both", 0, "general\nfriends", "Miguel", "both", 0, "general\nfriends").
		WillReturnError(errMockedStorage)

	err = s.UpsertRosterItem(&ri)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMockedStorage, err)
}

func TestSQLStorageDeleteRosterItem(t *testing.T) {
	s, mock := NewMock()
	mock.ExpectExec("DELETE FROM roster_items (.+)").
		WithArgs("ortuman@jackal.im").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.DeleteRosterItem("ortuman@jackal.im")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestSQLStorageFetchRosterItems(t *testing.T) {
	var cols = []string{"contact_jid", "name", "subscription", "ask", "groups"}

	s, mock := NewMock()
	mock.ExpectQuery("SELECT (.+) FROM roster_items ORDER BY contact_jid").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("noelia@jackal.im", "Noelia", "both", 0, "").
			AddRow("ortuman@jackal.im", "Miguel", "to", 1, "general"))

	items, err := s.FetchRosterItems()
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 2, len(items))
	require.Equal(t, "noelia@jackal.im", items[0].JID)
	require.True(t, items[1].Ask)
	require.Equal(t, []string{"general"}, items[1].Groups)

	s, mock = NewMock()
	mock.ExpectQuery("SELECT (.+) FROM roster_items ORDER BY contact_jid").
		WillReturnError(errMockedStorage)

	_, err = s.FetchRosterItems()
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMockedStorage, err)
}

func TestSQLStorageFetchRosterItem(t *testing.T) {
	var cols = []string{"contact_jid", "name", "subscription", "ask", "groups"}

	s, mock := NewMock()
	mock.ExpectQuery("SELECT (.+) FROM roster_items (.+)").
		WithArgs("noelia@jackal.im").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("noelia@jackal.im", "Noelia", "both", 0, ""))

	ri, err := s.FetchRosterItem("noelia@jackal.im")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, ri)
	require.Equal(t, "Noelia", ri.Name)

	s, mock = NewMock()
	mock.ExpectQuery("SELECT (.+) FROM roster_items (.+)").
		WithArgs("noelia@jackal.im").
		WillReturnRows(sqlmock.NewRows(cols))

	ri, err = s.FetchRosterItem("noelia@jackal.im")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, ri)
}
