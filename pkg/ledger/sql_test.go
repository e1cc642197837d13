package ledger

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicconel11/contramind-pilot/pkg/contracts"
)

func mockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLStore{db: db}, mock
}

func TestSQLCommitWinner(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO decision_ledger`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO idempotency`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := store.Commit(context.Background(), testRow("p1"), "key-1", []byte("resp"))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, int64(42), res.Row.ID)
	assert.Equal(t, "key-1", res.Row.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCommitRaceLoserReturnsWinnerResponse(t *testing.T) {
	store, mock := mockStore(t)

	// ON CONFLICT DO NOTHING yields no row for the loser.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO decision_ledger`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT response FROM idempotency`)).
		WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"response"}).AddRow([]byte("winner-resp")))
	mock.ExpectCommit()

	res, err := store.Commit(context.Background(), testRow("p2"), "key-1", []byte("loser-resp"))
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, []byte("winner-resp"), res.Response)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCommitNoIdemKeySkipsIdempotencyWrite(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO decision_ledger`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	res, err := store.Commit(context.Background(), testRow("p1"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Row.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLookup(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT response FROM idempotency`)).
		WithArgs("hit").
		WillReturnRows(sqlmock.NewRows([]string{"response"}).AddRow([]byte("cached")))
	resp, ok, err := store.Lookup(context.Background(), "hit")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("cached"), resp)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT response FROM idempotency`)).
		WithArgs("miss").
		WillReturnRows(sqlmock.NewRows([]string{"response"}))
	_, ok, err = store.Lookup(context.Background(), "miss")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLScanFrom(t *testing.T) {
	store, mock := mockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM decision_ledger WHERE id >= $1 ORDER BY id LIMIT $2`)).
		WithArgs(int64(1), 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "ts_inserted", "proof_id", "kernel_id", "param_hash", "kid", "bundle", "certificate_jws", "idempotency_key",
		}).
			AddRow(int64(1), now, "p1", "cm.kernel.v1", "h", "k1", `{"a":1}`, "j1", "key-1").
			AddRow(int64(2), now, "p2", "cm.kernel.v1", "h", "k1", `{"a":2}`, "j2", ""))

	rows, err := store.ScanFrom(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p1", rows[0].ProofID)
	assert.Equal(t, []byte(`{"a":2}`), []byte(rows[1].Bundle))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLastAnchorNotFound(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM anchors ORDER BY id DESC LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "from_id", "to_id", "merkle_root", "signature", "kid"}))

	_, err := store.LastAnchor(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAppendAnchor(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO anchors`)).
		WithArgs(int64(1), int64(10), "root", "sig", "k1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	a, err := store.AppendAnchor(context.Background(), contracts.AnchorRow{
		FromID: 1, ToID: 10, MerkleRoot: "root", Signature: "sig", Kid: "k1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMaxIDEmpty(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(id), 0) FROM decision_ledger`)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(0)))

	id, err := store.MaxID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
