package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthtask/notify-engine/internal/domain"
)

type pgPreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPgPreferenceRepository returns a PreferenceRepository backed by PostgreSQL.
// Addresses, muted types, and quiet hours are stored as jsonb; the ordered
// channel list is a text array so the fallback order survives round-trips.
func NewPgPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &pgPreferenceRepository{pool: pool}
}

func (r *pgPreferenceRepository) Get(ctx context.Context, recipientID string) (*domain.ChannelPreference, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT recipient_id, channels, addresses, disabled, quiet_hours, updated_at
		FROM channel_preferences WHERE recipient_id = $1`, recipientID)

	var p domain.ChannelPreference
	var channels []string
	var addresses, disabled []byte
	var quiet []byte
	err := row.Scan(&p.RecipientID, &channels, &addresses, &disabled, &quiet, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}

	for _, ch := range channels {
		p.Channels = append(p.Channels, domain.Channel(ch))
	}
	if err := json.Unmarshal(addresses, &p.Addresses); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	if len(disabled) > 0 {
		if err := json.Unmarshal(disabled, &p.Disabled); err != nil {
			return nil, fmt.Errorf("decode disabled map: %w", err)
		}
	}
	if len(quiet) > 0 {
		if err := json.Unmarshal(quiet, &p.Quiet); err != nil {
			return nil, fmt.Errorf("decode quiet hours: %w", err)
		}
	}
	return &p, nil
}

func (r *pgPreferenceRepository) Upsert(ctx context.Context, p *domain.ChannelPreference) error {
	addresses, err := json.Marshal(p.Addresses)
	if err != nil {
		return fmt.Errorf("encode addresses: %w", err)
	}
	var disabled, quiet []byte
	if p.Disabled != nil {
		if disabled, err = json.Marshal(p.Disabled); err != nil {
			return fmt.Errorf("encode disabled map: %w", err)
		}
	}
	if p.Quiet != nil {
		if quiet, err = json.Marshal(p.Quiet); err != nil {
			return fmt.Errorf("encode quiet hours: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO channel_preferences
			(recipient_id, channels, addresses, disabled, quiet_hours, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (recipient_id) DO UPDATE
		SET channels = $2, addresses = $3, disabled = $4, quiet_hours = $5, updated_at = $6`,
		p.RecipientID, channelStrings(p.Channels), addresses, disabled, quiet, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
