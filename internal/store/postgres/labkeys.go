package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LabKeyStore holds per-lab LLM API keys.
type LabKeyStore struct {
	db *sql.DB
}

func NewLabKeyStore(db *sql.DB) *LabKeyStore {
	return &LabKeyStore{db: db}
}

// LabAPIKey returns the lab's key, or "" when none is stored.
func (s *LabKeyStore) LabAPIKey(ctx context.Context, labID string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT api_key FROM lab_api_keys WHERE lab_id = $1`, labID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get lab api key: %w", err)
	}
	return key, nil
}

// SetLabAPIKey stores or replaces the lab's key.
func (s *LabKeyStore) SetLabAPIKey(ctx context.Context, labID, key string) error {
	query := `
		INSERT INTO lab_api_keys (lab_id, api_key, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (lab_id) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, labID, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("set lab api key: %w", err)
	}
	return nil
}
