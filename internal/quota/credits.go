package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrInsufficientCredits is returned when a Deduct would take an
// organization below its balance plus any configured overage allowance.
var ErrInsufficientCredits = errors.New("quota: insufficient compute credits")

// CreditLedger tracks organization-scoped compute-credit balances.
// Deduct is the only write path the Executor needs: credits are granted
// out of band (billing), never by this package.
type CreditLedger struct {
	client *redis.Client
}

// NewCreditLedger constructs a CreditLedger over an existing Redis client.
func NewCreditLedger(client *redis.Client) *CreditLedger {
	return &CreditLedger{client: client}
}

func (l *CreditLedger) balanceKey(organizationID string) string {
	return fmt.Sprintf("credits:balance:%s", organizationID)
}

// Grant adds amount to organizationID's balance (a positive top-up).
func (l *CreditLedger) Grant(ctx context.Context, organizationID string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("quota: grant amount must be non-negative, got %v", amount)
	}
	return l.client.IncrByFloat(ctx, l.balanceKey(organizationID), amount).Err()
}

// Balance returns the current balance for organizationID, or 0 if it has
// never been granted credits.
func (l *CreditLedger) Balance(ctx context.Context, organizationID string) (float64, error) {
	v, err := l.client.Get(ctx, l.balanceKey(organizationID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota: reading balance: %w", err)
	}
	return v, nil
}

// Deduct atomically subtracts usage from organizationID's balance,
// honoring overageLimit (the maximum the balance may go negative by; an
// overageLimit of 0 tolerates no overage). It returns
// ErrInsufficientCredits without mutating the balance when the
// deduction would exceed the allowance. The check-then-set runs inside
// a WATCH transaction so concurrent executions for the same
// organization can never jointly drive the balance past its overage
// allowance.
func (l *CreditLedger) Deduct(ctx context.Context, organizationID string, usage, overageLimit float64) (float64, error) {
	if usage < 0 {
		return 0, fmt.Errorf("quota: usage must be non-negative, got %v", usage)
	}

	key := l.balanceKey(organizationID)
	var newBalance float64
	var insufficient bool

	txf := func(tx *redis.Tx) error {
		balance, err := tx.Get(ctx, key).Float64()
		if err != nil && err != redis.Nil {
			return err
		}
		newBalance = balance - usage
		if newBalance < -overageLimit {
			insufficient = true
			newBalance = balance
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newBalance, 0)
			return nil
		})
		return err
	}

	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		err = l.client.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("quota: deducting credits: %w", err)
	}
	if insufficient {
		return newBalance, ErrInsufficientCredits
	}
	return newBalance, nil
}
