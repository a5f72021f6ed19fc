package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/coaching-scheduler/internal/persistence"
)

const recordColumns = `session_id, status, session_datetime, meeting_link, coach_id, created_at, updated_at, completed_at`

// CreateSchedulingRecord inserts a new record. An existing row for the same
// session yields persistence.ErrDuplicate.
func (s *Storage) CreateSchedulingRecord(ctx context.Context, record persistence.SchedulingRecord) error {
	if record.SessionID == "" || record.SessionDatetime.IsZero() {
		return persistence.ErrConstraintViolation
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	const query = `INSERT INTO scheduling_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, query,
			record.SessionID,
			record.Status,
			formatTime(record.SessionDatetime),
			nullString(record.MeetingLink),
			nullString(record.CoachID),
			formatTime(record.CreatedAt),
			formatTime(record.UpdatedAt),
			nullTime(record.CompletedAt),
		)
		return err
	})
}

// UpdateSchedulingRecord overwrites the mutable columns of an existing record.
// created_at is preserved.
func (s *Storage) UpdateSchedulingRecord(ctx context.Context, record persistence.SchedulingRecord) error {
	if record.SessionID == "" {
		return persistence.ErrConstraintViolation
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}

	const query = `
		UPDATE scheduling_records
		SET status = ?, session_datetime = ?, meeting_link = ?, coach_id = ?, updated_at = ?, completed_at = ?
		WHERE session_id = ?`
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, query,
				record.Status,
				formatTime(record.SessionDatetime),
				nullString(record.MeetingLink),
				nullString(record.CoachID),
				formatTime(record.UpdatedAt),
				nullTime(record.CompletedAt),
				record.SessionID,
			)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return persistence.ErrNotFound
			}
			return nil
		})
	})
}

// GetSchedulingRecord loads the record of sessionID.
func (s *Storage) GetSchedulingRecord(ctx context.Context, sessionID string) (persistence.SchedulingRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM scheduling_records WHERE session_id = ?`

	var record persistence.SchedulingRecord
	err := s.retry.WithRetry(ctx, func() error {
		var err error
		record, err = scanRecord(s.pool.DB().QueryRowContext(ctx, query, sessionID))
		return err
	})
	if err != nil {
		return persistence.SchedulingRecord{}, err
	}
	return record, nil
}

// ListSchedulingRecords returns records matching filter ordered by session time.
func (s *Storage) ListSchedulingRecords(ctx context.Context, filter persistence.SchedulingRecordFilter) ([]persistence.SchedulingRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.CoachID != "" {
		clauses = append(clauses, "coach_id = ?")
		args = append(args, filter.CoachID)
	}
	if filter.ScheduledBefore != nil {
		clauses = append(clauses, "session_datetime < ?")
		args = append(args, formatTime(*filter.ScheduledBefore))
	}

	query := `SELECT ` + recordColumns + ` FROM scheduling_records`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY session_datetime ASC, session_id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var records []persistence.SchedulingRecord
	err := s.retry.WithRetry(ctx, func() error {
		records = records[:0]
		rows, err := s.pool.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteSchedulingRecord removes the record of sessionID.
func (s *Storage) DeleteSchedulingRecord(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM scheduling_records WHERE session_id = ?`
	return s.retry.WithRetry(ctx, func() error {
		res, err := s.pool.DB().ExecContext(ctx, query, sessionID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (persistence.SchedulingRecord, error) {
	var (
		record                          persistence.SchedulingRecord
		sessionAt, createdAt, updatedAt string
		link, coach, completedAt        sql.NullString
	)
	if err := row.Scan(&record.SessionID, &record.Status, &sessionAt, &link, &coach, &createdAt, &updatedAt, &completedAt); err != nil {
		return persistence.SchedulingRecord{}, err
	}

	var err error
	if record.SessionDatetime, err = parseTime(sessionAt); err != nil {
		return persistence.SchedulingRecord{}, fmt.Errorf("parse session_datetime: %w", err)
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.SchedulingRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.SchedulingRecord{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return persistence.SchedulingRecord{}, fmt.Errorf("parse completed_at: %w", err)
		}
		record.CompletedAt = &t
	}
	if link.Valid {
		v := link.String
		record.MeetingLink = &v
	}
	if coach.Valid {
		v := coach.String
		record.CoachID = &v
	}
	return record, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}
