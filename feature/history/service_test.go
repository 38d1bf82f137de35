package history

import (
	"context"
	"testing"
	"time"

	"recon-engine/core/recon"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestService_Watch_PersistsBatchRuns(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRepository(db)

	e := recon.NewEngine(zap.NewNop())
	t.Cleanup(e.Close)

	svc := NewService(repo, e, zap.NewNop())
	svc.Watch()

	// Two batches of one unmatched internal record each: every run summary
	// carries a missing-counterpart discrepancy, so each run writes both
	// tables, in completion order.
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `run_records`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO `audit_entries`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	batches := []recon.Batch{
		{Internal: []recon.InternalRecord{{
			TransactionID: "TXN-1",
			Amount:        decimal.NewFromInt(100),
			Currency:      "USD",
			Timestamp:     day,
		}}},
		{Internal: []recon.InternalRecord{{
			TransactionID: "TXN-2",
			Amount:        decimal.NewFromInt(50),
			Currency:      "EUR",
			Timestamp:     day,
		}}},
	}

	h, err := e.StartBatch(context.Background(), batches)
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)

	// Event delivery and persistence are asynchronous.
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
}
