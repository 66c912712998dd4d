package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattools/cattools/internal/store/query"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		dialect query.Dialect
		wantErr bool
	}{
		{DriverPgx, query.DialectPostgres, false},
		{DriverPostgres, query.DialectPostgres, false},
		{DriverSQLite, query.DialectSQLite, false},
		{"mysql", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, d)
		})
	}
}

func TestSchema_TableNames(t *testing.T) {
	s := Schema{Prefix: "mw_"}
	assert.Equal(t, "mw_categorylinks", s.CategoryLinks())
	assert.Equal(t, "mw_page", s.Page())
	assert.NoError(t, s.Validate())

	assert.Error(t, Schema{Prefix: "mw-"}.Validate())
	assert.NoError(t, Schema{}.Validate())
}

func TestSchema_SelectLinkedPages(t *testing.T) {
	s := Schema{Prefix: "mw_", Dialect: query.DialectSQLite}
	sql, args, err := s.SelectLinkedPages(ColPageID).Where(ColTo, query.OpEqual, "Foo").ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT page_id FROM mw_categorylinks"+
		" INNER JOIN mw_page ON mw_page.page_id = mw_categorylinks.cl_from WHERE cl_to = ?", sql)
	assert.Equal(t, []interface{}{"Foo"}, args)
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Driver: DriverSQLite})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:", Prefix: "bad prefix"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = DriverSQLite
	cfg.DSN = ":memory:"
	cfg.Prefix = "wiki_"

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, query.DialectSQLite, db.Schema.Dialect)
	assert.Equal(t, "wiki_page", db.Schema.Page())
}

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"bad conn", driver.ErrBadConn, ErrUnavailable},
		{"pg connection exception", &pgconn.PgError{Code: "08006", Message: "connection failure"}, ErrUnavailable},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01", Message: "terminating"}, ErrUnavailable},
		{"pg syntax error", &pgconn.PgError{Code: "42601", Message: "syntax error"}, ErrQueryFailed},
		{"pq connection exception", &pq.Error{Code: "08001", Message: "refused"}, ErrUnavailable},
		{"pq undefined table", &pq.Error{Code: "42P01", Message: "no such table"}, ErrQueryFailed},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, ErrUnavailable},
		{"sqlite error", sqlite3.Error{Code: sqlite3.ErrError}, ErrQueryFailed},
		{"wrapped generic", fmt.Errorf("scan: %w", errors.New("boom")), ErrQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertDBError(tt.err)
			assert.True(t, errors.Is(got, tt.target), "got %v", got)
		})
	}

	assert.Nil(t, ConvertDBError(nil))
	assert.ErrorIs(t, ConvertDBError(context.Canceled), context.Canceled)
	assert.True(t, IsUnavailable(ConvertDBError(driver.ErrBadConn)))
}
