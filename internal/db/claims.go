package db

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/idempotency"
)

var _ idempotency.Guard = (*Store)(nil)

// Claim takes key for ttl unless an unexpired claim already holds it. Expired claims are
// replaced in the same transaction.
func (s *Store) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM submission_claims WHERE claim_key = ? AND expires_at <= ?"), key, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO submission_claims (claim_key, expires_at) VALUES (?, ?)"), key, now.Add(ttl))
		return err
	})
	err = mapErr(err)
	if errors.Is(err, fault.ErrUniqueViolation) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM submission_claims WHERE claim_key = ?"), key)
	return err
}
