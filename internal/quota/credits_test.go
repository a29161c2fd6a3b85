package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditLedger_GrantAndBalance(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ledger := NewCreditLedger(client)
	ctx := context.Background()

	balance, err := ledger.Balance(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)

	require.NoError(t, ledger.Grant(ctx, "org-1", 10))
	balance, err = ledger.Balance(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, balance)
}

func TestCreditLedger_Deduct(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ledger := NewCreditLedger(client)
	ctx := context.Background()

	require.NoError(t, ledger.Grant(ctx, "org-1", 5))

	balance, err := ledger.Deduct(ctx, "org-1", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, balance)

	balance, err = ledger.Deduct(ctx, "org-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestCreditLedger_Deduct_InsufficientCredits(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ledger := NewCreditLedger(client)
	ctx := context.Background()

	require.NoError(t, ledger.Grant(ctx, "org-1", 1))

	_, err := ledger.Deduct(ctx, "org-1", 5, 0)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	balance, err := ledger.Balance(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, balance, "balance must be unchanged after a rejected deduction")
}

func TestCreditLedger_Deduct_WithinOverageLimit(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ledger := NewCreditLedger(client)
	ctx := context.Background()

	require.NoError(t, ledger.Grant(ctx, "org-1", 1))

	balance, err := ledger.Deduct(ctx, "org-1", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, -2.0, balance)

	_, err = ledger.Deduct(ctx, "org-1", 10, 5)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}
