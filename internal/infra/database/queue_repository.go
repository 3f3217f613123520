package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

const createQueueTable = `
	CREATE TABLE IF NOT EXISTS lead_retry_queue (
		id             TEXT PRIMARY KEY,
		target_sink_id TEXT NOT NULL,
		attempts       INT NOT NULL,
		max_attempts   INT NOT NULL,
		dead_reason    TEXT,
		last_attempt   TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		last_error     TEXT,
		lead           JSONB NOT NULL
	)
`

// QueueRepository keeps retry-queue entries in Postgres so they survive a restart.
type QueueRepository struct {
	DB *sql.DB
}

func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{DB: db}
}

// Migrate creates the table when missing.
func (r *QueueRepository) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, createQueueTable); err != nil {
		return fmt.Errorf("erro ao criar tabela lead_retry_queue: %w", err)
	}
	return nil
}

func (r *QueueRepository) Save(ctx context.Context, entry entity.QueuedLead) error {
	leadJSON, err := json.Marshal(entry.Lead)
	if err != nil {
		return fmt.Errorf("erro ao serializar lead: %w", err)
	}

	query := `
		INSERT INTO lead_retry_queue
			(id, target_sink_id, attempts, max_attempts, dead_reason, last_attempt, created_at, last_error, lead)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			attempts = EXCLUDED.attempts,
			dead_reason = EXCLUDED.dead_reason,
			last_attempt = EXCLUDED.last_attempt,
			last_error = EXCLUDED.last_error
	`
	_, err = r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.TargetSinkID,
		entry.Attempts,
		entry.MaxAttempts,
		nullString(entry.DeadReason),
		entry.LastAttempt,
		entry.CreatedAt,
		nullString(entry.Error),
		leadJSON,
	)
	return err
}

func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM lead_retry_queue WHERE id = $1`, id)
	return err
}

func (r *QueueRepository) LoadAll(ctx context.Context) ([]entity.QueuedLead, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, target_sink_id, attempts, max_attempts, dead_reason, last_attempt, created_at, last_error, lead
		FROM lead_retry_queue
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.QueuedLead
	for rows.Next() {
		entry, err := scanQueuedLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQueuedLead(s scanner) (entity.QueuedLead, error) {
	var (
		e          entity.QueuedLead
		deadReason sql.NullString
		lastError  sql.NullString
		leadJSON   []byte
	)
	err := s.Scan(
		&e.ID,
		&e.TargetSinkID,
		&e.Attempts,
		&e.MaxAttempts,
		&deadReason,
		&e.LastAttempt,
		&e.CreatedAt,
		&lastError,
		&leadJSON,
	)
	if err != nil {
		return e, err
	}
	e.DeadReason = deadReason.String
	e.Error = lastError.String
	if err := json.Unmarshal(leadJSON, &e.Lead); err != nil {
		return e, fmt.Errorf("lead corrompido na fila (%s): %w", e.ID, err)
	}
	return e, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
