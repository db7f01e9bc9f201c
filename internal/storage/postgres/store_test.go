package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/zrouga/CoAI-app/internal/intel"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}

func TestGetOrCreateKeyword(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("INSERT INTO keywords").
		WithArgs("demo", intel.KeywordPending).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "keyword", "status", "total_products",
			"processing_duration_seconds", "error_message", "created_at", "processed_at",
		}).AddRow(int64(7), "demo", intel.KeywordPending, 0, (*float64)(nil), (*string)(nil), now, (*time.Time)(nil)))

	k, err := store.GetOrCreateKeyword(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, int64(7), k.ID)
	require.Equal(t, "demo", k.Keyword)
	require.Equal(t, intel.KeywordPending, k.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkKeywordProcessing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE keywords").
		WithArgs(intel.KeywordProcessing, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkKeywordProcessing(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKeywordResultNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE keywords").
		WithArgs(intel.KeywordCompleted, 3, (*float64)(nil), (*string)(nil), int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateKeywordResult(context.Background(), 99, intel.KeywordCompleted, 3, nil, nil)
	require.ErrorIs(t, err, intel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTraffic(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	visits := int64(402000)
	mock.ExpectExec("INSERT INTO traffic_intelligence").
		WithArgs(int64(5), &visits, "extension").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertTraffic(context.Background(), intel.TrafficIntelligence{
		ProductID:     5,
		MonthlyVisits: &visits,
		DataSource:    "extension",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteKeywordResultsCascade(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM traffic_intelligence").
		WithArgs("demo").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM products").
		WithArgs("demo").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM keywords").
		WithArgs("demo").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.DeleteKeywordResults(context.Background(), "demo"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteKeywordResultsNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM traffic_intelligence").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM products").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM keywords").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := store.DeleteKeywordResults(context.Background(), "ghost")
	require.ErrorIs(t, err, intel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"keywords", "products", "with_traffic"}).
			AddRow(int64(2), int64(14), int64(9)))

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), counts.Keywords)
	require.Equal(t, int64(14), counts.Products)
	require.Equal(t, int64(9), counts.ProductsWithTraffic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductsByKeywordNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("absent").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	_, err := store.ProductsByKeyword(context.Background(), "absent", intel.SortDiscoveredAt, true, 0, 20)
	require.ErrorIs(t, err, intel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
