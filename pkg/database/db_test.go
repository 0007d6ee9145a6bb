package database

import (
	"net/url"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDSN_URLCarriesSettingsForEveryConnection(t *testing.T) {
	dsn, err := sessionDSN(Config{
		DSN:            "postgres://club:secret@db:5432/club?sslmode=disable",
		TimeZone:       "Europe/Oslo",
		ClientEncoding: "utf-8",
	})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "Europe/Oslo", u.Query().Get("timezone"))
	assert.Equal(t, "UTF8", u.Query().Get("client_encoding"))

	// lib/pq turns the query into startup options sent on each new connection
	opts, err := pq.ParseURL(dsn)
	require.NoError(t, err)
	assert.Contains(t, opts, "timezone=Europe/Oslo")
	assert.Contains(t, opts, "client_encoding=UTF8")
}

func TestSessionDSN_KeyValueForm(t *testing.T) {
	dsn, err := sessionDSN(Config{
		DSN:            "host=db dbname=club sslmode=disable",
		TimeZone:       `Odd 'Zone'`,
		ClientEncoding: "UTF8",
	})
	require.NoError(t, err)

	assert.Equal(t, `host=db dbname=club sslmode=disable timezone='Odd \'Zone\'' client_encoding='UTF8'`, dsn)
}

func TestSessionDSN_NothingToAdd(t *testing.T) {
	dsn, err := sessionDSN(Config{DSN: "postgres://db/club"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/club", dsn)
}

func TestSessionDSN_RejectsEncodingTheDriverCannotSpeak(t *testing.T) {
	_, err := sessionDSN(Config{DSN: "postgres://db/club", ClientEncoding: "LATIN1"})
	assert.ErrorContains(t, err, `client encoding "LATIN1" is not supported`)
}
