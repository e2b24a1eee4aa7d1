package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	b, err := Open(ctx, path)
	require.NoError(t, err)

	_, err = b.Get(ctx, persistence.SnapshotKey)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, b.Put(ctx, persistence.SnapshotKey, []byte(`{"xp":1}`)))
	require.NoError(t, b.Put(ctx, persistence.SnapshotKey, []byte(`{"xp":2}`)))
	require.NoError(t, b.Close())

	b, err = Open(ctx, path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Get(ctx, persistence.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, `{"xp":2}`, string(got))

	require.NoError(t, b.Delete(ctx, persistence.SnapshotKey))
	_, err = b.Get(ctx, persistence.SnapshotKey)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestBackend_Queries(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	b := NewWithDB(db)
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_snapshots (key, value, updated_at)")).
		WithArgs("k", []byte("v"), int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM ledger_snapshots WHERE key = ?")).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("v")))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ledger_snapshots WHERE key = ?")).
		WithArgs("k").
		WillReturnError(errors.New("database is locked"))

	require.NoError(t, b.Migrate(ctx))
	require.NoError(t, b.Put(ctx, "k", []byte("v")))

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	err = b.Delete(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}
