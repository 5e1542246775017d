package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthtask/notify-engine/internal/domain"
)

type pgAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewPgAttemptRepository returns an AttemptRepository backed by PostgreSQL.
func NewPgAttemptRepository(pool *pgxpool.Pool) AttemptRepository {
	return &pgAttemptRepository{pool: pool}
}

const attemptColumns = `id, message_id, channel, outcome, error_class,
	error_message, provider_msg_id, latency_ms, created_at`

func (r *pgAttemptRepository) Record(ctx context.Context, a *domain.DeliveryAttempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO delivery_attempts
			(id, message_id, channel, outcome, error_class, error_message,
			 provider_msg_id, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.MessageID, a.Channel, a.Outcome, a.ErrorClass, a.ErrorMessage,
		a.ProviderMsgID, a.LatencyMs, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

func (r *pgAttemptRepository) ListByMessage(ctx context.Context, messageID string) ([]*domain.DeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM delivery_attempts
		WHERE message_id = $1
		ORDER BY created_at ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.DeliveryAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *pgAttemptRepository) FindByProviderMsgID(ctx context.Context, providerMsgID string) (*domain.DeliveryAttempt, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+attemptColumns+`
		FROM delivery_attempts
		WHERE provider_msg_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, providerMsgID)

	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *pgAttemptRepository) UpdateOutcome(ctx context.Context, attemptID string, outcome domain.Outcome) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE delivery_attempts SET outcome = $1 WHERE id = $2`, outcome, attemptID)
	return err
}

func (r *pgAttemptRepository) Stats(ctx context.Context, recipientID string, since time.Time) (*domain.DeliveryStats, error) {
	stats := &domain.DeliveryStats{ByChannel: map[domain.Channel]domain.ChannelStats{}}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed')
		FROM scheduled_messages
		WHERE recipient_id = $1 AND created_at >= $2`,
		recipientID, since,
	).Scan(&stats.Total, &stats.Successful, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("message stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT a.channel,
		       COUNT(*) FILTER (WHERE a.outcome IN ('sent','opened','clicked')),
		       COUNT(*) FILTER (WHERE a.outcome = 'failed'),
		       COUNT(*)
		FROM delivery_attempts a
		JOIN scheduled_messages m ON m.id = a.message_id
		WHERE m.recipient_id = $1 AND a.created_at >= $2
		GROUP BY a.channel`, recipientID, since)
	if err != nil {
		return nil, fmt.Errorf("attempt stats: %w", err)
	}
	defer rows.Close()

	totalAttempts := 0
	for rows.Next() {
		var ch string
		var sent, failed, attempts int
		if err := rows.Scan(&ch, &sent, &failed, &attempts); err != nil {
			return nil, err
		}
		stats.ByChannel[domain.Channel(ch)] = domain.ChannelStats{Sent: sent, Failed: failed}
		totalAttempts += attempts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.AvgAttempts = float64(totalAttempts) / float64(stats.Total)
	}
	return stats, nil
}

func scanAttempt(row pgx.Row) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	err := row.Scan(
		&a.ID, &a.MessageID, &a.Channel, &a.Outcome, &a.ErrorClass,
		&a.ErrorMessage, &a.ProviderMsgID, &a.LatencyMs, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
