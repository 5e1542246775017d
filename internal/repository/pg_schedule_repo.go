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

type pgScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewPgScheduleRepository returns a ScheduleRepository backed by PostgreSQL.
func NewPgScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &pgScheduleRepository{pool: pool}
}

const messageColumns = `id, recipient_id, notification_type, template_id, data,
	schedule_at, status, channels, channel_index, attempts, max_attempts,
	rule_id, idempotency_key, last_error, created_at, updated_at`

func (r *pgScheduleRepository) CreateMessage(ctx context.Context, m *domain.ScheduledMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_messages
			(id, recipient_id, notification_type, template_id, data, schedule_at,
			 status, channels, channel_index, attempts, max_attempts,
			 rule_id, idempotency_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.RecipientID, m.Type, m.TemplateID, m.Data, m.ScheduleAt,
		m.Status, channelStrings(m.Channels), m.ChannelIndex, m.Attempts, m.MaxAttempts,
		m.RuleID, m.IdempotencyKey, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled message: %w", err)
	}
	return nil
}

func (r *pgScheduleRepository) CreateFromRule(ctx context.Context, m *domain.ScheduledMessage) (bool, error) {
	// ON CONFLICT DO NOTHING on the idempotency key makes double
	// materialization from overlapping ticks a silent no-op.
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_messages
			(id, recipient_id, notification_type, template_id, data, schedule_at,
			 status, channels, channel_index, attempts, max_attempts,
			 rule_id, idempotency_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		m.ID, m.RecipientID, m.Type, m.TemplateID, m.Data, m.ScheduleAt,
		m.Status, channelStrings(m.Channels), m.ChannelIndex, m.Attempts, m.MaxAttempts,
		m.RuleID, m.IdempotencyKey, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("materialize message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgScheduleRepository) GetMessage(ctx context.Context, id string) (*domain.ScheduledMessage, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM scheduled_messages WHERE id = $1`, id)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

func (r *pgScheduleRepository) DueMessages(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE status = 'pending' AND schedule_at <= $1
		ORDER BY schedule_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// terminalGuard keeps every status write from overwriting a terminal
// status, so a concurrent cancel or late retry can never resurrect or
// flip a finished message.
const terminalGuard = ` AND status NOT IN ('sent','failed','cancelled')`

func (r *pgScheduleRepository) MarkStatus(ctx context.Context, id string, status domain.MessageStatus, lastError *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_messages
		SET status = $1, last_error = COALESCE($2, last_error), updated_at = NOW()
		WHERE id = $3`+terminalGuard, status, lastError, id)
	return err
}

func (r *pgScheduleRepository) SetChannels(ctx context.Context, id string, channels []domain.Channel) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_messages
		SET channels = $1, channel_index = 0, updated_at = NOW()
		WHERE id = $2`, channelStrings(channels), id)
	return err
}

func (r *pgScheduleRepository) Reschedule(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_messages
		SET schedule_at = $1, status = 'pending', updated_at = NOW()
		WHERE id = $2`+terminalGuard, at, id)
	return err
}

func (r *pgScheduleRepository) ScheduleRetry(ctx context.Context, id string, attempts, channelIndex int, at time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_messages
		SET schedule_at = $1, status = 'pending', attempts = $2,
		    channel_index = $3, last_error = $4, updated_at = NOW()
		WHERE id = $5`+terminalGuard, at, attempts, channelIndex, lastError, id)
	return err
}

func (r *pgScheduleRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_messages
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'dispatching' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgScheduleRepository) Cancel(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_messages
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1`+terminalGuard, id)
	return err
}

// ---- recurring rules ----

const ruleColumns = `id, recipient_id, notification_type, template_id, data,
	cadence, repeat_interval, days_of_week, day_of_month, enabled,
	next_fire_at, created_at, updated_at`

func (r *pgScheduleRepository) CreateRule(ctx context.Context, rule *domain.RecurringRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recurring_rules
			(id, recipient_id, notification_type, template_id, data, cadence,
			 repeat_interval, days_of_week, day_of_month, enabled, next_fire_at,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rule.ID, rule.RecipientID, rule.Type, rule.TemplateID, rule.Data, rule.Cadence,
		rule.Interval, weekdayInts(rule.DaysOfWeek), rule.DayOfMonth, rule.Enabled,
		rule.NextFireAt, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recurring rule: %w", err)
	}
	return nil
}

func (r *pgScheduleRepository) GetRule(ctx context.Context, id string) (*domain.RecurringRule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = $1`, id)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

func (r *pgScheduleRepository) DueRules(ctx context.Context, now time.Time, limit int) ([]*domain.RecurringRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE enabled AND next_fire_at <= $1
		ORDER BY next_fire_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *pgScheduleRepository) AdvanceRule(ctx context.Context, id string, nextFireAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE recurring_rules
		SET next_fire_at = $1, updated_at = NOW()
		WHERE id = $2`, nextFireAt, id)
	return err
}

func (r *pgScheduleRepository) SetRuleEnabled(ctx context.Context, id string, enabled bool, nextFireAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_rules
		SET enabled = $1, next_fire_at = $2, updated_at = NOW()
		WHERE id = $3`, enabled, nextFireAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- helpers ----

func scanMessage(row pgx.Row) (*domain.ScheduledMessage, error) {
	var m domain.ScheduledMessage
	var channels []string
	err := row.Scan(
		&m.ID, &m.RecipientID, &m.Type, &m.TemplateID, &m.Data,
		&m.ScheduleAt, &m.Status, &channels, &m.ChannelIndex,
		&m.Attempts, &m.MaxAttempts, &m.RuleID, &m.IdempotencyKey,
		&m.LastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		m.Channels = append(m.Channels, domain.Channel(ch))
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]*domain.ScheduledMessage, error) {
	var result []*domain.ScheduledMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanRule(row pgx.Row) (*domain.RecurringRule, error) {
	var rule domain.RecurringRule
	var days []int32
	err := row.Scan(
		&rule.ID, &rule.RecipientID, &rule.Type, &rule.TemplateID, &rule.Data,
		&rule.Cadence, &rule.Interval, &days, &rule.DayOfMonth, &rule.Enabled,
		&rule.NextFireAt, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday(d))
	}
	return &rule, nil
}

func channelStrings(channels []domain.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = string(ch)
	}
	return out
}

func weekdayInts(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}
