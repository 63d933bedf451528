package storage

import (
	"context"
	"time"
)

// Redlist and active-member entries are plain presence records keyed by user
// ID: redlist membership means ban on sight, active membership gates the
// todo system.

func (s *Store) AddRedlist(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO redlist (user_id, added_at) VALUES (?, ?)`, userID, time.Now().Unix())
	return err
}

func (s *Store) RemoveRedlist(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM redlist WHERE user_id = ?`, userID)
	return err
}

func (s *Store) IsRedlisted(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, "redlist", userID)
}

func (s *Store) ListRedlist(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, "redlist")
}

func (s *Store) AddActiveMember(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO active_members (user_id, added_at) VALUES (?, ?)`, userID, time.Now().Unix())
	return err
}

func (s *Store) RemoveActiveMember(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM active_members WHERE user_id = ?`, userID)
	return err
}

func (s *Store) IsActiveMember(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, "active_members", userID)
}

func (s *Store) ListActiveMembers(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, "active_members")
}

func (s *Store) exists(ctx context.Context, table, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE user_id = ?`, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) listIDs(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM `+table+` ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
