package finder

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattools/cattools/internal/store"
)

func membershipRows() *sqlmock.Rows {
	// page 1 in A and B, page 2 in A, page 3 in B
	return sqlmock.NewRows([]string{"cl_from", "cl_to"}).
		AddRow(1, "A").
		AddRow(1, "B").
		AddRow(2, "A").
		AddRow(3, "B")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAll, false},
		{"ALL", ModeAll, false},
		{"and", ModeAll, false},
		{"ANY", ModeAny, false},
		{"or", ModeAny, false},
		{" any ", ModeAny, false},
		{"XOR", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "ALL", ModeAll.String())
	assert.Equal(t, "ANY", ModeAny.String())
}

func TestSQLFinder_All(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT cl_from, cl_to FROM categorylinks WHERE cl_from IN`).
		WithArgs(int64(1), int64(2), int64(3), "A", "B").
		WillReturnRows(membershipRows())

	f := NewSQLFinder(db, store.Schema{}, nil)
	got, err := f.Find(context.Background(), []int64{1, 2, 3}, []string{"A", "B"}, ModeAll)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFinder_Any(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT cl_from, cl_to FROM categorylinks`).
		WillReturnRows(membershipRows())

	f := NewSQLFinder(db, store.Schema{}, nil)
	got, err := f.Find(context.Background(), []int64{3, 4, 2, 1}, []string{"A", "B"}, ModeAny)
	require.NoError(t, err)

	// input order is preserved
	assert.Equal(t, []int64{3, 2, 1}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFinder_AllWithUnknownCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT cl_from, cl_to FROM categorylinks`).
		WillReturnRows(membershipRows())

	f := NewSQLFinder(db, store.Schema{}, nil)
	got, err := f.Find(context.Background(), []int64{1, 2, 3}, []string{"A", "B", "Missing"}, ModeAll)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLFinder_Batches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT cl_from, cl_to FROM categorylinks`).
		WithArgs(int64(1), int64(2), "A").
		WillReturnRows(sqlmock.NewRows([]string{"cl_from", "cl_to"}).AddRow(2, "A"))
	mock.ExpectQuery(`SELECT cl_from, cl_to FROM categorylinks`).
		WithArgs(int64(3), "A").
		WillReturnRows(sqlmock.NewRows([]string{"cl_from", "cl_to"}).AddRow(3, "A"))

	f := NewSQLFinder(db, store.Schema{}, nil).WithBatchSize(2)
	got, err := f.Find(context.Background(), []int64{1, 2, 3, 2}, []string{"A", "A"}, ModeAll)
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 3}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFinder_EmptyInputsSkipQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := NewSQLFinder(db, store.Schema{}, nil)

	got, err := f.Find(context.Background(), nil, []string{"A"}, ModeAll)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.Find(context.Background(), []int64{1}, nil, ModeAny)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFinder_InvalidIDs(t *testing.T) {
	f := NewSQLFinder(nil, store.Schema{}, nil)

	_, err := f.Find(context.Background(), []int64{0}, []string{"A"}, ModeAll)
	assert.Error(t, err)

	_, err = f.Find(context.Background(), []int64{1 << 40}, []string{"A"}, ModeAll)
	assert.Error(t, err)
}

func TestSQLFinder_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT cl_from, cl_to FROM categorylinks`).
		WillReturnError(errors.New("replica lag"))

	f := NewSQLFinder(db, store.Schema{}, nil)
	_, err = f.Find(context.Background(), []int64{1}, []string{"A"}, ModeAny)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrQueryFailed)
}
