package accesslog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Insert(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO access_log (
			id, patient_id, user_id, user_roles, resource, action,
			method, path, status, request_id, ip_address, accessed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.PatientID, e.UserID, e.UserRoles, e.Resource, e.Action,
		e.Method, e.Path, e.Status, e.RequestID, e.IPAddress, e.AccessedAt)
	if err != nil {
		return fmt.Errorf("insert access entry: %w", err)
	}
	return nil
}

func (s *pgStore) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_log WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access entries: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, user_id, user_roles, resource, action,
		       method, path, status, request_id, ip_address, accessed_at
		FROM access_log
		WHERE patient_id = $1
		ORDER BY accessed_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list access entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.PatientID, &e.UserID, &e.UserRoles, &e.Resource, &e.Action,
			&e.Method, &e.Path, &e.Status, &e.RequestID, &e.IPAddress, &e.AccessedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
