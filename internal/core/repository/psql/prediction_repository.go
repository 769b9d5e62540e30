package psql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// PredictionLogRepository implements domain.PredictionLogRepository using PostgreSQL.
// Payloads live in JSONB columns.
type PredictionLogRepository struct {
	pool *pgxpool.Pool
}

// NewPredictionLogRepository creates a new PostgreSQL prediction log repository
func NewPredictionLogRepository(pool *pgxpool.Pool) *PredictionLogRepository {
	return &PredictionLogRepository{pool: pool}
}

// Append inserts one entry, filling ID and CreatedAt when empty
func (r *PredictionLogRepository) Append(ctx context.Context, entry *domain.PredictionLog) error {
	if !entry.Type.Valid() {
		return fmt.Errorf("append prediction log: unknown type %q", entry.Type)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO prediction_logs (id, user_id, type, input, output, created_at)
		VALUES ($1::uuid, $2, $3, $4::jsonb, $5::jsonb, $6)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, string(entry.Type),
		jsonText(entry.Input), jsonText(entry.Output), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction log: %w", err)
	}
	return nil
}

// ListByUser returns the newest entries first, at most domain.MaxHistoryEntries
func (r *PredictionLogRepository) ListByUser(ctx context.Context, userID string, types []domain.FeatureType, limit int) ([]domain.PredictionLog, error) {
	if limit <= 0 || limit > domain.MaxHistoryEntries {
		limit = domain.MaxHistoryEntries
	}

	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	query := `SELECT id::text, user_id, type, input, output, created_at
		FROM prediction_logs
		WHERE user_id = $1 AND (cardinality($2::text[]) = 0 OR type = ANY($2::text[]))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, userID, typeNames, limit)
	if err != nil {
		return nil, fmt.Errorf("query prediction logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.PredictionLog, 0, limit)
	for rows.Next() {
		var entry domain.PredictionLog
		var typ string
		var input, output []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &typ, &input, &output, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction log: %w", err)
		}
		entry.Type = domain.FeatureType(typ)
		entry.Input = json.RawMessage(input)
		entry.Output = json.RawMessage(output)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction logs: %w", err)
	}

	return entries, nil
}

// jsonText keeps an absent payload as JSON null rather than an empty string.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
