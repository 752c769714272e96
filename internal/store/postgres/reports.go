package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docaudit/internal/audit"
)

// ReportStore keeps finished audit reports.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// SaveReport inserts a report record. The record must carry an ID.
func (s *ReportStore) SaveReport(ctx context.Context, rec audit.Record) error {
	if rec.ID == "" {
		return errors.New("save report: missing id")
	}
	if rec.Report == nil {
		return errors.New("save report: missing report")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO audit_reports (
			id, content_hash, filename, lab_id, product_name, manufacturer,
			uploaded_by, request, report, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.ContentHash,
		rec.Request.Filename,
		nullString(rec.Request.LabID),
		nullString(rec.Request.ProductName),
		nullString(rec.Request.Manufacturer),
		nullString(rec.Request.UploadedBy),
		reqJSON,
		reportJSON,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport loads a report record by ID.
func (s *ReportStore) GetReport(ctx context.Context, id string) (*audit.Record, error) {
	query := `
		SELECT id, content_hash, request, report, created_at
		FROM audit_reports
		WHERE id = $1
	`

	var rec audit.Record
	var reqJSON, reportJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.ContentHash,
		&reqJSON,
		&reportJSON,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	rec.Report = &audit.Report{}
	if err := json.Unmarshal(reportJSON, rec.Report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rec, nil
}
