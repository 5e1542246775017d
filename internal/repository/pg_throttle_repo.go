package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthtask/notify-engine/internal/domain"
)

type pgThrottleRepository struct {
	pool *pgxpool.Pool
}

// NewPgThrottleRepository returns a ThrottleRepository backed by PostgreSQL.
func NewPgThrottleRepository(pool *pgxpool.Pool) ThrottleRepository {
	return &pgThrottleRepository{pool: pool}
}

// Admit implements the fixed-window counter inside a transaction with a row
// lock, so concurrent workers never lose an increment. The row is created
// on first use.
func (r *pgThrottleRepository) Admit(ctx context.Context, recipientID string, ch domain.Channel, now time.Time, limit int, window time.Duration) (bool, time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("begin throttle tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Ensure the row exists before locking it. ON CONFLICT makes two
	// concurrent first admits for the same pair converge on one row
	// instead of colliding on the primary key.
	_, err = tx.Exec(ctx, `
		INSERT INTO throttle_state (recipient_id, channel, count, window_start)
		VALUES ($1,$2,0,$3)
		ON CONFLICT (recipient_id, channel) DO NOTHING`, recipientID, ch, now)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("create throttle row: %w", err)
	}

	var count int
	var windowStart time.Time
	err = tx.QueryRow(ctx, `
		SELECT count, window_start FROM throttle_state
		WHERE recipient_id = $1 AND channel = $2
		FOR UPDATE`, recipientID, ch).Scan(&count, &windowStart)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("read throttle row: %w", err)
	}

	windowEnd := windowStart.Add(window)
	if !now.Before(windowEnd) {
		// Window expired: reset atomically under the row lock.
		_, err = tx.Exec(ctx, `
			UPDATE throttle_state SET count = 1, window_start = $1
			WHERE recipient_id = $2 AND channel = $3`, now, recipientID, ch)
		if err != nil {
			return false, time.Time{}, fmt.Errorf("reset throttle window: %w", err)
		}
		return true, time.Time{}, tx.Commit(ctx)
	}

	if count >= limit {
		// Denied: the counter is left untouched and the caller defers the
		// job to the window boundary instead of dropping it.
		return false, windowEnd, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE throttle_state SET count = count + 1
		WHERE recipient_id = $1 AND channel = $2`, recipientID, ch)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("increment throttle count: %w", err)
	}
	return true, time.Time{}, tx.Commit(ctx)
}
